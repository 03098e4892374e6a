package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/database"
	"github.com/mallucodewizard/videoverse/internal/logging"
)

// formOverhead is the slack allowed on top of the upload size limit for
// multipart framing and the title field.
const formOverhead = 1 << 20

// videoResponse is the serialized video record including its storage
// location.
type videoResponse struct {
	*database.Video
	Location string `json:"location"`
}

func newVideoResponse(v *database.Video) videoResponse {
	return videoResponse{Video: v, Location: v.Path}
}

// Upload handles new video uploads.
// POST /api/videos (multipart: file, title)
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "invalid multipart form"))
		return
	}

	title := r.FormValue("title")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.E(apperr.KindInvalidInput, "no file provided"))
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close uploaded file: %v", err)
		}
	}()

	video, err := h.svc.Upload(r.Context(), file, header.Filename, title)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, newVideoResponse(video))
}

// ListVideos returns the most recent videos.
// GET /api/videos
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	videos, err := h.store.ListVideos(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, newVideoResponse(v))
	}
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"videos": out,
		"total":  len(out),
	})
}

// GetVideo returns a single video record.
// GET /api/videos/{id}
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	video, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, newVideoResponse(video))
}

// GetVideoFile serves the video bytes for playback.
// GET /api/videos/{id}/file
func (h *Handlers) GetVideoFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	video, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	http.ServeFile(w, r, video.Path)
}

// GetThumbnail serves the poster frame for a video when one exists.
// GET /api/videos/{id}/thumbnail
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Resolve through the store first so unknown ids 404 the same way
	// everywhere, even when a stale thumbnail file exists.
	if _, err := h.store.GetVideo(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	thumbPath := filepath.Join(h.cfg.ThumbnailDir, id+".jpg")
	if _, err := os.Stat(thumbPath); err != nil {
		writeJSONError(w, "no thumbnail available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, thumbPath)
}

type trimRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// TrimVideo produces a new video from a sub-range of the source.
// POST /api/videos/{id}/trim
func (h *Handlers) TrimVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req trimRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "invalid trim request body"))
			return
		}
	}

	video, err := h.svc.Trim(r.Context(), id, req.Start, req.End)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, newVideoResponse(video))
}

type mergeRequest struct {
	IDs []string `json:"ids"`
}

// MergeVideos concatenates the given videos, in order, into a new video.
// POST /api/videos/merge
func (h *Handlers) MergeVideos(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "invalid merge request body"))
		return
	}

	video, err := h.svc.Merge(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, newVideoResponse(video))
}
