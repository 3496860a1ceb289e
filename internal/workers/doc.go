/*
Package workers sizes and runs the worker pools of the ingest service.

# Overview

In containers the CPU quota is usually smaller than the host's CPU count.
Go sets GOMAXPROCS from the cgroup limit, but runtime.NumCPU still reports
the host, so pool sizes here are derived from GOMAXPROCS:

	// 64 on a 64 core node, even with a 2 CPU limit
	runtime.NumCPU()

	// 2 with a 2 CPU limit
	runtime.GOMAXPROCS(0)

# Encoders

An ffmpeg process is itself multi-threaded. ForEncoder divides the
available CPUs by the per-encoder thread count, so four CPUs and two
encoder threads allow two concurrent transcodes:

	n := workers.ForEncoder(cfg.EncoderThreads, 8)

# Running a pool

ForEach fans a slice out to n workers and blocks until every started item
has finished:

	workers.ForEach(ctx, n, files, func(ctx context.Context, path string) {
		ingest(ctx, path)
	})

Cancelling ctx stops dispatching new items; items already running see the
cancelled context and are expected to return promptly.

# Configuration

Set INGEST_WORKERS to force the pool size. The override is still capped by
the caller's limit, and non-positive or non-numeric values are ignored.
*/
package workers
