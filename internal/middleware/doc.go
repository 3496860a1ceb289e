// Package middleware provides the HTTP middleware chain of the ingest
// service.
//
// It includes:
//   - Request IDs, echoed in the X-Request-ID response header
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path cardinality
//   - gzip compression for JSON and playlist responses
//
// Access logging of processed artifacts (playlists, segments, posters) and
// of health probes is configurable, since players and orchestrators poll
// both constantly.
package middleware
