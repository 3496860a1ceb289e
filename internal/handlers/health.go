package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"hls-ingest/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"

	healthCheckTimeout = 2 * time.Second
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string         `json:"status"`
	Ready         bool           `json:"ready"`
	Version       string         `json:"version"`
	Uptime        string         `json:"uptime"`
	DatabaseError string         `json:"databaseError,omitempty"`
	LastRecovery  string         `json:"lastRecovery,omitempty"`
	Assets        map[string]int `json:"assets,omitempty"`
	Busy          bool           `json:"busy"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Ready:        h.IsReady(),
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Busy:         h.throttle != nil && h.throttle.IsPaused(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	dbErr := h.store.Ping(ctx)
	if dbErr != nil {
		response.DatabaseError = dbErr.Error()
	} else {
		if counts, err := h.store.CountAssetsByState(ctx); err == nil {
			response.Assets = counts
		}
		if last, err := h.store.GetLastRecovery(ctx); err == nil && !last.IsZero() {
			response.LastRecovery = last.Format(time.RFC3339)
		}
	}

	status := http.StatusOK
	switch {
	case dbErr != nil:
		response.Status = statusDegraded
		status = http.StatusServiceUnavailable
	case !response.Ready:
		response.Status = statusStarting
		status = http.StatusServiceUnavailable
	default:
		response.Status = statusHealthy
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONStatus(w, "alive")
}

// ReadinessCheck returns 200 only when startup recovery has finished and
// the database answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if !h.IsReady() || h.store.Ping(ctx) != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{"status": "ready"})
}
