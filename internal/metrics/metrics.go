// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoverse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoverse_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload and validation metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_uploads_total",
			Help: "Total number of upload attempts",
		},
		[]string{"status"}, // "accepted", "rejected", "error"
	)

	ValidationRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_validation_rejections_total",
			Help: "Uploads rejected by the validation gate",
		},
		[]string{"reason"}, // "size", "duration", "unreadable"
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videoverse_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)
)

// Transform metrics
var (
	TransformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_transforms_total",
			Help: "Total number of transform operations",
		},
		[]string{"op", "status"}, // op: "trim", "merge", "thumbnail"
	)

	TransformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoverse_transform_duration_seconds",
			Help:    "Wall time of ffmpeg transform operations",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"op"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_probes_total",
			Help: "Total number of media probe calls",
		},
		[]string{"status"},
	)
)

// Share link metrics
var (
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoverse_share_tokens_issued_total",
			Help: "Total number of share tokens issued",
		},
	)

	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_share_token_verifications_total",
			Help: "Share token verification attempts",
		},
		[]string{"result"}, // "valid", "expired", "tampered"
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoverse_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoverse_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// App info
var appInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "videoverse_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo records the build information gauge.
func SetAppInfo(version, commit, goVersion string) {
	appInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// ObserveDBQuery records a database query outcome and duration.
func ObserveDBQuery(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueryTotal.WithLabelValues(operation, status).Inc()
	DBQueryDuration.WithLabelValues(operation).Observe(seconds)
}
