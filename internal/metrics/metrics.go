package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	WebSocketSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_websocket_subscribers",
			Help: "Number of connected progress event subscribers",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	ConversionHistoryTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_history_conversions",
			Help: "Recorded conversions in the history table by status",
		},
		[]string{"status"},
	)

	ProbeCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_probe_cache_entries",
			Help: "Number of cached probe results",
		},
	)
)

// Probe metrics
var (
	ProbeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_probe_requests_total",
			Help: "Total number of ffprobe invocations by result",
		},
		[]string{"status"},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_converter_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_probe_cache_hits_total",
			Help: "Probe results served from the cache",
		},
	)

	ProbeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_probe_cache_misses_total",
			Help: "Probe requests that had to run ffprobe",
		},
	)
)

// Capability metrics
var (
	EncoderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_hw_encoder_available",
			Help: "Whether a hardware encoder family was reported by ffmpeg (1 = available)",
		},
		[]string{"family"},
	)

	CapabilityDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_capability_detections_total",
			Help: "Encoder listing runs by result",
		},
		[]string{"status"},
	)
)

// Conversion metrics
var (
	ConversionJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_jobs_total",
			Help: "Total number of conversion jobs by final status",
		},
		[]string{"status"},
	)

	ConversionJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_converter_job_duration_seconds",
			Help:    "Conversion job wall-clock duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ConversionJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_jobs_in_progress",
			Help: "Number of conversion jobs currently running",
		},
	)

	ConversionJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_jobs_queued",
			Help: "Number of accepted conversion jobs waiting for a worker slot",
		},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_cancellations_total",
			Help: "Cancellation requests by outcome",
		},
		[]string{"outcome"},
	)

	ProgressEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_progress_events_total",
			Help: "Progress events emitted to listeners",
		},
	)

	DiagnosticLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_diagnostic_lines_total",
			Help: "ffmpeg stderr lines that were not progress samples",
		},
	)
)

// Preview metrics
var (
	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_preview_generations_total",
			Help: "Preview frame generations by result",
		},
		[]string{"status"},
	)

	PreviewGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_converter_preview_generation_duration_seconds",
			Help:    "Preview frame extraction and resize duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
