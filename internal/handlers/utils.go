package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"hls-ingest/internal/database"
	"hls-ingest/internal/failure"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// failureResponse is the body of a failed pipeline request. Asset is set
// when a record exists, e.g. one that ended rejected.
type failureResponse struct {
	Error string          `json:"error"`
	Kind  failure.Kind    `json:"kind,omitempty"`
	Asset *database.Asset `json:"asset,omitempty"`
}

// writeFailure maps a pipeline error to its status code.
func writeFailure(w http.ResponseWriter, asset *database.Asset, err error) {
	resp := failureResponse{
		Error: failure.ReasonOf(err),
		Kind:  failure.KindOf(err),
	}
	if asset != nil && asset.ID != 0 {
		resp.Asset = asset
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError && resp.Kind == "" {
		resp.Error = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, resp)
}

func statusFor(err error) int {
	if errors.Is(err, database.ErrNotFound) {
		return http.StatusNotFound
	}
	switch failure.KindOf(err) {
	case failure.KindValidation:
		return http.StatusUnprocessableEntity
	case failure.KindAlreadyProcessed:
		return http.StatusConflict
	case failure.KindToolUnavailable:
		return http.StatusServiceUnavailable
	case failure.KindTranscode, failure.KindTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
