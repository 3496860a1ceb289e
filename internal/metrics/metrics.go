package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_ingest_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Asset metrics
var (
	AssetsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hls_ingest_assets",
			Help: "Number of asset records by lifecycle state",
		},
		[]string{"state"},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome (published, rejected)",
		},
		[]string{"outcome"},
	)

	PipelineRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_pipeline_rejections_total",
			Help: "Total number of rejected assets by failure kind",
		},
		[]string{"kind"},
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hls_ingest_pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds, validation through publish",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	PipelineRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_pipeline_runs_in_progress",
			Help: "Number of pipeline runs currently in progress",
		},
	)

	DurationProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_duration_probes_total",
			Help: "Duration probes by result (ok, rejected, skipped)",
		},
		[]string{"result"},
	)

	ArtifactCleanupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_artifact_cleanups_total",
			Help: "Output directory removals after failed attempts by status",
		},
		[]string{"status"},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_transcoder_jobs_total",
			Help: "Total number of transcoding jobs by status",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hls_ingest_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)

	ProcessKillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_process_kills_total",
			Help: "External processes killed by reason (timeout, canceled)",
		},
		[]string{"reason"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_filesystem_retry_attempts_total",
			Help: "Filesystem operation retries after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_ingest_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_ingest_memory_paused",
			Help: "Whether new ingest work is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_ingest_memory_gc_pauses_total",
			Help: "Times ingest work was paused due to memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hls_ingest_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
