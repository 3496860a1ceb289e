package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every application route.
func (h *Handlers) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.CreateAsset).Methods(http.MethodPost).Name("create-asset")
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet).Name("list-assets")
	api.HandleFunc("/assets/{id:[0-9]+}", h.GetAsset).Methods(http.MethodGet).Name("get-asset")
	api.HandleFunc("/assets/{id:[0-9]+}/process", h.ProcessAsset).Methods(http.MethodPost).Name("process-asset")

	// Published HLS packages
	r.PathPrefix(h.PathPrefix()).Handler(h.ProcessedFiles()).Methods(http.MethodGet, http.MethodHead)

	return r
}
