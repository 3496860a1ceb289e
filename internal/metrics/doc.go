// Package metrics provides Prometheus instrumentation for the ingest service.
//
// All metrics are prefixed with "hls_ingest_" and registered with the default
// registry through promauto. Mount promhttp.Handler() on the metrics port to
// expose them.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration (uploads run the
//     whole pipeline inline, so buckets extend to minutes)
//   - HTTPRequestsInFlight: Gauge of requests being processed
//
// ## Pipeline Metrics
//
//   - PipelineRunsTotal: Counter by outcome (published, rejected)
//   - PipelineRejectionsTotal: Counter by failure kind
//   - PipelineRunDuration: Histogram of end-to-end run time
//   - PipelineRunsInProgress: Gauge of active runs
//   - DurationProbesTotal: Counter of duration probes (ok, rejected, skipped)
//   - ArtifactCleanupsTotal: Counter of output directory removals
//
// ## Transcoder Metrics
//
//   - TranscoderJobsTotal: Counter by status
//   - TranscoderJobDuration: Histogram of encoder wall time
//   - TranscoderJobsInProgress: Gauge of running encoders
//   - ProcessKillsTotal: Counter of killed process groups by reason
//
// ## Asset and Database Metrics
//
//   - AssetsByState: Gauge of records per lifecycle state, refreshed by [Collector]
//   - DBQueryTotal, DBQueryDuration, DBConnectionsOpen
//
// ## Runtime Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses: heap against GOMEMLIMIT
//   - FilesystemRetry*, FilesystemStaleErrors: NFS retries and stale handles by volume
//
// # Prometheus Queries
//
// Rejection rate by kind:
//
//	sum(rate(hls_ingest_pipeline_rejections_total[1h])) by (kind)
//
// P95 encode time:
//
//	histogram_quantile(0.95, sum(rate(hls_ingest_transcoder_job_duration_seconds_bucket[1h])) by (le))
//
// Share of uploads whose duration check was skipped:
//
//	rate(hls_ingest_duration_probes_total{result="skipped"}[1h]) /
//	sum(rate(hls_ingest_duration_probes_total[1h]))
package metrics
