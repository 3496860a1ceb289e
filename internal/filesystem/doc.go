/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

The output root of the ingest service is commonly a network mount shared with
the process that serves playlists. The publisher verifies freshly written
playlists and segments with StatWithRetry, and failed attempts are removed with
RemoveAllWithRetry, so a transient ESTALE does not turn a good encode into a
rejection or leave a partial directory behind.

# Usage

	info, err := filesystem.StatWithRetry(playlistPath, filesystem.DefaultRetryConfig())

	if err := filesystem.RemoveAllWithRetry(outputDir, filesystem.DefaultRetryConfig()); err != nil {
	    // directory may be left behind; log it
	}

Only ESTALE (errno 116 on Linux) is retried, with exponential backoff capped at
MaxBackoff. Every other error is returned on the first attempt.

# Metrics

Retry outcomes are reported through an [Observer] labelled by volume. The
metrics package provides the Prometheus implementation; wire it at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media":  cfg.MediaRoot,
	    "output": cfg.OutputRoot,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
