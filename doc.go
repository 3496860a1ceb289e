// Package main provides the entry point for the HLS ingest service.
//
// The service accepts video uploads over HTTP, validates them, transcodes
// each accepted upload into an HLS package with ffmpeg and publishes the
// package under a stable reference that is served directly by this
// process.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT
//  2. Configuration Loading: Reads .env and environment variables, creates
//     and checks the upload, output and database directories
//  3. Database Initialization: Opens the SQLite asset store (WAL mode)
//  4. Tool Check: Logs the ffmpeg and ffprobe binaries that will be used
//  5. Recovery: Rejects assets a previous process left in transcoding and
//     removes their partial output, unless another process holds the run
//     lock. The lock is then held shared until exit
//  6. HTTP Server Setup: Routes, middleware and the optional metrics server
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM. Requests still running after
//     the grace period are canceled, which kills their encoders, and the
//     database closes only after their rejections are recorded
//
// # Background Services
//
//   - Memory Monitor: Refuses new uploads with 503 while the heap is near
//     GOMEMLIMIT
//   - Metrics Collector: Refreshes per-state asset gauges every 30 seconds
//
// # Packages
//
//   - [hls-ingest/internal/pipeline]: Validate, transcode, publish sequencing
//   - [hls-ingest/internal/validator]: Upload admission rules
//   - [hls-ingest/internal/transcoder]: ffmpeg invocation and duration probes
//   - [hls-ingest/internal/publisher]: Atomic publication of HLS packages
//   - [hls-ingest/internal/database]: Asset records and state transitions
//   - [hls-ingest/internal/handlers]: HTTP API and processed file serving
//
// See cmd/ingest for the command line client.
package main
