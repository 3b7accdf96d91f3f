// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidshape_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_jobs_total",
			Help: "Total number of processed jobs",
		},
		[]string{"mode", "status"}, // status: "success", "error", "canceled"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidshape_job_duration_seconds",
			Help:    "Job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"mode"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshape_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshape_queue_depth",
			Help: "Number of jobs waiting in the pending queue",
		},
	)
)

// Encode metrics
var (
	RenditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_renditions_total",
			Help: "Total number of rendition encodes",
		},
		[]string{"status"},
	)

	RenditionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidshape_rendition_duration_seconds",
			Help:    "Single rendition encode duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LadderFilteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshape_ladder_levels_filtered_total",
			Help: "Quality levels dropped because they would upscale the source",
		},
	)

	EngineCleanupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshape_engine_cleanup_errors_total",
			Help: "Engine namespace cleanups that failed",
		},
	)
)

// Capture metrics
var (
	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_captures_total",
			Help: "Total number of real-time captures",
		},
		[]string{"status"}, // "success", "load_error", "stalled", "recorder_error", "canceled"
	)

	CaptureFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshape_capture_frames_total",
			Help: "Frames drawn onto capture surfaces",
		},
	)
)

// Publishing metrics
var (
	WriterUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_writer_uploads_total",
			Help: "Artifact uploads per writer backend",
		},
		[]string{"backend", "status"},
	)

	WriterUploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshape_writer_upload_bytes_total",
			Help: "Bytes published per writer backend",
		},
		[]string{"backend"},
	)
)
