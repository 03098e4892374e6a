package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/mallucodewizard/videoverse/internal/database"
	"github.com/mallucodewizard/videoverse/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	TransformsEnabled bool `json:"transformsEnabled"`
	ThumbnailsEnabled bool `json:"thumbnailsEnabled"`

	TotalVideos int   `json:"totalVideos"`
	TotalBytes  int64 `json:"totalBytes"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:            statusHealthy,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		TransformsEnabled: h.cfg.TransformsEnabled,
		ThumbnailsEnabled: h.cfg.ThumbnailsEnabled,
		GoVersion:         runtime.Version(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			response.Status = statusDegraded
			status = http.StatusServiceUnavailable
		} else if stats, err := h.db.Stats(r.Context()); err == nil {
			response.TotalVideos = stats.TotalVideos
			response.TotalBytes = stats.TotalBytes
		}
	}

	writeJSONStatus(w, status, response)
}

// ReadinessCheck returns 200 only when the record store answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetStats returns aggregate store statistics.
// GET /api/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSONStatus(w, http.StatusOK, database.StoreStats{})
		return
	}

	stats, err := h.db.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, stats)
}

// GetVersion returns build information.
// GET /version
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, startup.GetBuildInfo())
}
