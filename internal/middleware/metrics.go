package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"hls-ingest/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath maps a request path onto its route template so that asset
// IDs and artifact paths do not explode label cardinality.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/processed/"):
		return "/processed/{path}"
	case path == "/api/assets" || path == "/api/assets/":
		return "/api/assets"
	case strings.HasPrefix(path, "/api/assets/"):
		rest := strings.TrimPrefix(path, "/api/assets/")
		id, tail, _ := strings.Cut(rest, "/")
		if id == "" {
			return "/api/assets"
		}
		switch tail {
		case "":
			return "/api/assets/{id}"
		case "process":
			return "/api/assets/{id}/process"
		}
		return "/api/assets/{id}/{other}"
	case healthCheckPaths[path], path == "/version", path == "/":
		return path
	}
	return "/{other}"
}
