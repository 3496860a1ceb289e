package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, state := range []string{"created", "validating", "transcoding", "published", "rejected"} {
		AssetsByState.WithLabelValues(state)
	}

	for _, outcome := range []string{"published", "rejected"} {
		PipelineRunsTotal.WithLabelValues(outcome)
	}

	for _, kind := range []string{"validation", "tool_unavailable", "transcode_failure",
		"transcode_timeout", "publish_failure", "already_processed", "store"} {
		PipelineRejectionsTotal.WithLabelValues(kind)
	}

	for _, result := range []string{"ok", "rejected", "skipped"} {
		DurationProbesTotal.WithLabelValues(result)
	}

	for _, status := range []string{"success", "error"} {
		ArtifactCleanupsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "failure", "timeout", "tool_unavailable"} {
		TranscoderJobsTotal.WithLabelValues(status)
	}

	for _, reason := range []string{"timeout", "canceled"} {
		ProcessKillsTotal.WithLabelValues(reason)
	}

	for _, op := range []string{"initialize_schema", "create_asset", "get_asset", "list_assets",
		"claim_asset", "publish_asset", "reject_asset", "list_interrupted", "count_by_state"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "remove"} {
		for _, vol := range []string{"media", "output", "database", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
