// Package handlers provides the HTTP API of the ingest service.
//
// It includes handlers for:
//   - Uploading an asset and running the pipeline inline (POST /api/assets)
//   - Listing and fetching asset records
//   - Re-running the pipeline for an asset still in state created
//   - Serving published HLS files under the public path prefix
//   - Health, liveness, readiness and version endpoints
//
// Pipeline failures are reported as JSON with the failure kind:
//
//	422 validation, 409 already_processed, 502 transcode_failure or
//	transcode_timeout, 503 tool_unavailable, 500 publish_failure or store
package handlers
