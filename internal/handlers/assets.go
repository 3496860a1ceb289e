package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hls-ingest/internal/database"
	"hls-ingest/internal/pipeline"
	"hls-ingest/internal/uploads"
	"hls-ingest/internal/validator"

	"github.com/gorilla/mux"
)

const (
	// uploadOverhead is allowed on top of the size limit for multipart
	// framing and the label field.
	uploadOverhead = 1 << 20

	// maxLabelBytes bounds how much of the label field is read. The
	// character limit itself is enforced by the pipeline.
	maxLabelBytes = 4096

	defaultListLimit = 50
	maxListLimit     = 500
)

// CreateAsset accepts a multipart upload (fields "file" and "label") and
// runs the pipeline inline. The response is the published asset, or the
// failure with the rejected asset when one was recorded.
func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	if h.throttle != nil && h.throttle.IsPaused() {
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, "server is busy, retry later", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+uploadOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, "expected a multipart/form-data upload", http.StatusBadRequest)
		return
	}

	var (
		label string
		file  *uploads.File
	)
	discard := func() {
		if file == nil {
			return
		}
		if err := h.uploads.Remove(file.Path); err != nil {
			log.Warn("failed to remove upload %s: %v", file.Path, err)
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			discard()
			h.writeUploadError(w, err)
			return
		}

		switch part.FormName() {
		case "label":
			b, err := io.ReadAll(io.LimitReader(part, maxLabelBytes))
			if err != nil {
				part.Close()
				discard()
				h.writeUploadError(w, err)
				return
			}
			label = strings.TrimSpace(string(b))
		case "file":
			if file != nil {
				part.Close()
				discard()
				writeJSONError(w, "only one file per upload", http.StatusBadRequest)
				return
			}
			file, err = h.uploads.Save(part, part.FileName())
			if err != nil {
				part.Close()
				h.writeUploadError(w, err)
				return
			}
		}
		part.Close()
	}

	if file == nil {
		writeJSONError(w, "missing file field", http.StatusBadRequest)
		return
	}

	asset, err := h.ingester.Ingest(r.Context(), pipeline.Upload{
		Label: label,
		Name:  file.Name,
		Path:  file.Path,
		Size:  file.Size,
		Hash:  file.Hash,
	})
	// Only a recorded asset keeps its source.
	if asset == nil || asset.ID == 0 {
		discard()
	}
	if err != nil {
		writeFailure(w, asset, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/assets/"+strconv.FormatInt(asset.ID, 10))
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, asset)
}

func (h *Handlers) writeUploadError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || errors.Is(err, uploads.ErrTooLarge) {
		writeFailure(w, nil, validator.TooLarge(h.maxUploadBytes))
		return
	}
	log.Error("upload failed: %v", err)
	writeJSONError(w, "failed to read upload", http.StatusBadRequest)
}

// ListAssets returns asset records, newest first. Optional query
// parameters: state, limit, offset.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := database.ListOptions{Limit: defaultListLimit}

	if s := q.Get("state"); s != "" {
		state := database.State(s)
		if !state.Valid() {
			writeJSONError(w, "unknown state "+strconv.Quote(s), http.StatusBadRequest)
			return
		}
		opts.State = state
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		opts.Limit = min(limit, maxListLimit)
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}

	assets, err := h.store.ListAssets(r.Context(), opts)
	if err != nil {
		log.Error("failed to list assets: %v", err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"assets": assets,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetAsset returns one asset record.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(w, r)
	if !ok {
		return
	}

	asset, err := h.store.GetAsset(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("failed to get asset %d: %v", id, err)
		writeJSONError(w, "failed to get asset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, asset)
}

// ProcessAsset runs the pipeline for a recorded asset still in state
// created. Any other state answers 409 and changes nothing.
func (h *Handlers) ProcessAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(w, r)
	if !ok {
		return
	}

	asset, err := h.ingester.Process(r.Context(), id)
	if err != nil {
		writeFailure(w, asset, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, asset)
}

func assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
