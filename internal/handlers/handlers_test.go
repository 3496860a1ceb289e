package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hls-ingest/internal/database"
	"hls-ingest/internal/failure"
	"hls-ingest/internal/pipeline"
	"hls-ingest/internal/startup"
	"hls-ingest/internal/uploads"
)

// =============================================================================
// Mocks
// =============================================================================

type mockStore struct {
	assets      map[int64]*database.Asset
	listOpts    database.ListOptions
	listErr     error
	pingErr     error
	counts      map[string]int
	lastRecover time.Time
}

func (m *mockStore) GetAsset(_ context.Context, id int64) (*database.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return a, nil
}

func (m *mockStore) ListAssets(_ context.Context, opts database.ListOptions) ([]database.Asset, error) {
	m.listOpts = opts
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []database.Asset{}
	for _, a := range m.assets {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockStore) CountAssetsByState(context.Context) (map[string]int, error) {
	return m.counts, nil
}

func (m *mockStore) GetLastRecovery(context.Context) (time.Time, error) {
	return m.lastRecover, nil
}

func (m *mockStore) Ping(context.Context) error {
	return m.pingErr
}

type mockIngester struct {
	mu        sync.Mutex
	uploads   []pipeline.Upload
	ingestFn  func(pipeline.Upload) (*database.Asset, error)
	processFn func(int64) (*database.Asset, error)
}

func (m *mockIngester) Ingest(_ context.Context, up pipeline.Upload) (*database.Asset, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, up)
	m.mu.Unlock()
	if m.ingestFn != nil {
		return m.ingestFn(up)
	}
	return &database.Asset{ID: 1, State: database.StatePublished, ProcessedRef: "processed/26/x/playlist.m3u8"}, nil
}

func (m *mockIngester) Process(_ context.Context, id int64) (*database.Asset, error) {
	if m.processFn != nil {
		return m.processFn(id)
	}
	return &database.Asset{ID: id, State: database.StatePublished}, nil
}

type pausedThrottle bool

func (p pausedThrottle) IsPaused() bool { return bool(p) }

// =============================================================================
// Helpers
// =============================================================================

// newTestHandlers returns handlers and the directory uploads are stored in.
func newTestHandlers(t *testing.T, store AssetStore, ing Ingester) (*Handlers, string) {
	t.Helper()
	cfg := &startup.Config{
		OutputRoot:       t.TempDir(),
		PublicPathPrefix: "processed",
		MaxVideoSizeMB:   1,
	}
	uploadDir := t.TempDir()
	return New(store, ing, uploads.New(uploadDir, cfg.MaxUploadBytes()), cfg), uploadDir
}

func multipartBody(t *testing.T, label, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if label != "" {
		if err := mw.WriteField("label", label); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, label, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, label, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/assets", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// storedFiles lists regular files below dir.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return files
}

func decodeFailure(t *testing.T, body io.Reader) failureResponse {
	t.Helper()
	var resp failureResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

// =============================================================================
// CreateAsset
// =============================================================================

func TestCreateAssetSuccess(t *testing.T) {
	ing := &mockIngester{}
	h, uploadDir := newTestHandlers(t, &mockStore{}, ing)

	w := httptest.NewRecorder()
	h.CreateAsset(w, uploadRequest(t, "  Holiday  ", "clip.mp4", []byte("video bytes")))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/assets/1" {
		t.Errorf("Location = %q", loc)
	}

	if len(ing.uploads) != 1 {
		t.Fatalf("ingester called %d times", len(ing.uploads))
	}
	got := ing.uploads[0]
	if got.Label != "Holiday" || got.Name != "clip.mp4" || got.Size != int64(len("video bytes")) {
		t.Errorf("unexpected upload: %+v", got)
	}
	if len(got.Hash) != 64 {
		t.Errorf("expected hex blake2b-256 hash, got %q", got.Hash)
	}
	if files := storedFiles(t, uploadDir); len(files) != 1 || files[0] != got.Path {
		t.Errorf("stored files = %v, want [%s]", files, got.Path)
	}

	var asset database.Asset
	if err := json.NewDecoder(w.Body).Decode(&asset); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if asset.State != database.StatePublished || asset.ProcessedRef == "" {
		t.Errorf("unexpected asset: %+v", asset)
	}
}

func TestCreateAssetFailures(t *testing.T) {
	tests := []struct {
		name       string
		assetID    int64
		err        error
		wantStatus int
		wantKind   failure.Kind
		keepUpload bool
	}{
		{"validation before record", 0, failure.New(failure.KindValidation, "unsupported file type"), http.StatusUnprocessableEntity, failure.KindValidation, false},
		{"transcode failure", 3, failure.New(failure.KindTranscode, "exit status 1"), http.StatusBadGateway, failure.KindTranscode, true},
		{"transcode timeout", 3, failure.New(failure.KindTimeout, "exceeded 300s"), http.StatusBadGateway, failure.KindTimeout, true},
		{"tool unavailable", 3, failure.New(failure.KindToolUnavailable, "ffmpeg not found"), http.StatusServiceUnavailable, failure.KindToolUnavailable, true},
		{"publish failure", 3, failure.New(failure.KindPublish, "no segments"), http.StatusInternalServerError, failure.KindPublish, true},
		{"store failure without record", -1, failure.New(failure.KindStore, "cannot record asset"), http.StatusInternalServerError, failure.KindStore, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &mockIngester{ingestFn: func(pipeline.Upload) (*database.Asset, error) {
				if tt.assetID < 0 {
					return nil, tt.err
				}
				return &database.Asset{ID: tt.assetID, State: database.StateRejected, Reason: failure.ReasonOf(tt.err)}, tt.err
			}}
			h, uploadDir := newTestHandlers(t, &mockStore{}, ing)

			w := httptest.NewRecorder()
			h.CreateAsset(w, uploadRequest(t, "", "clip.mp4", []byte("bytes")))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeFailure(t, w.Body)
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if tt.assetID > 0 && (resp.Asset == nil || resp.Asset.State != database.StateRejected) {
				t.Errorf("expected the rejected asset in the response, got %+v", resp.Asset)
			}
			if tt.assetID <= 0 && resp.Asset != nil {
				t.Errorf("unsaved asset should not be returned: %+v", resp.Asset)
			}

			files := storedFiles(t, uploadDir)
			if tt.keepUpload && len(files) != 1 {
				t.Errorf("recorded asset should keep its source, files = %v", files)
			}
			if !tt.keepUpload && len(files) != 0 {
				t.Errorf("unrecorded upload should be removed, files = %v", files)
			}
		})
	}
}

func TestCreateAssetTooLarge(t *testing.T) {
	ing := &mockIngester{}
	h, uploadDir := newTestHandlers(t, &mockStore{}, ing)

	w := httptest.NewRecorder()
	h.CreateAsset(w, uploadRequest(t, "", "big.mp4", make([]byte, 1<<20+10)))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	resp := decodeFailure(t, w.Body)
	if resp.Error != "video size cannot exceed 1MB" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(ing.uploads) != 0 {
		t.Error("oversized upload should not reach the pipeline")
	}
	if files := storedFiles(t, uploadDir); len(files) != 0 {
		t.Errorf("oversized upload left files behind: %v", files)
	}
}

func TestCreateAssetBadRequests(t *testing.T) {
	h, _ := newTestHandlers(t, &mockStore{}, &mockIngester{})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/assets", strings.NewReader(`{"label":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.CreateAsset(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.CreateAsset(w, uploadRequest(t, "label only", "", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestCreateAssetThrottled(t *testing.T) {
	ing := &mockIngester{}
	h, _ := newTestHandlers(t, &mockStore{}, ing)
	h.WithThrottle(pausedThrottle(true))

	w := httptest.NewRecorder()
	h.CreateAsset(w, uploadRequest(t, "", "clip.mp4", []byte("x")))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if len(ing.uploads) != 0 {
		t.Error("throttled upload should not reach the pipeline")
	}
}

// =============================================================================
// Asset queries
// =============================================================================

func TestGetAsset(t *testing.T) {
	store := &mockStore{assets: map[int64]*database.Asset{
		5: {ID: 5, Label: "five", State: database.StatePublished, ProcessedRef: "processed/26/a/playlist.m3u8"},
	}}
	h, _ := newTestHandlers(t, store, &mockIngester{})
	router := h.NewRouter()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/assets/5", http.StatusOK},
		{"/api/assets/6", http.StatusNotFound},
		{"/api/assets/0", http.StatusBadRequest},
		{"/api/assets/abc", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestListAssets(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantOpts   database.ListOptions
	}{
		{"defaults", "", http.StatusOK, database.ListOptions{Limit: defaultListLimit}},
		{"state filter", "?state=published", http.StatusOK, database.ListOptions{State: database.StatePublished, Limit: defaultListLimit}},
		{"paging", "?limit=10&offset=20", http.StatusOK, database.ListOptions{Limit: 10, Offset: 20}},
		{"limit capped", "?limit=100000", http.StatusOK, database.ListOptions{Limit: maxListLimit}},
		{"bad limit ignored", "?limit=-3", http.StatusOK, database.ListOptions{Limit: defaultListLimit}},
		{"unknown state", "?state=done", http.StatusBadRequest, database.ListOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			h, _ := newTestHandlers(t, store, &mockIngester{})

			w := httptest.NewRecorder()
			h.ListAssets(w, httptest.NewRequest(http.MethodGet, "/api/assets"+tt.query, http.NoBody))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && store.listOpts != tt.wantOpts {
				t.Errorf("opts = %+v, want %+v", store.listOpts, tt.wantOpts)
			}
		})
	}
}

func TestListAssetsStoreError(t *testing.T) {
	h, _ := newTestHandlers(t, &mockStore{listErr: errors.New("disk I/O error")}, &mockIngester{})

	w := httptest.NewRecorder()
	h.ListAssets(w, httptest.NewRequest(http.MethodGet, "/api/assets", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk I/O") {
		t.Error("internal error details should not be exposed")
	}
}

func TestProcessAsset(t *testing.T) {
	tests := []struct {
		name       string
		processFn  func(int64) (*database.Asset, error)
		wantStatus int
	}{
		{
			name: "published",
			processFn: func(id int64) (*database.Asset, error) {
				return &database.Asset{ID: id, State: database.StatePublished}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "already processed",
			processFn: func(id int64) (*database.Asset, error) {
				return &database.Asset{ID: id, State: database.StatePublished},
					failure.New(failure.KindAlreadyProcessed, "asset %d is published", id)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "unknown asset",
			processFn: func(int64) (*database.Asset, error) {
				return nil, database.ErrNotFound
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers(t, &mockStore{}, &mockIngester{processFn: tt.processFn})

			w := httptest.NewRecorder()
			h.NewRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/assets/9/process", http.NoBody))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{failure.New(failure.KindValidation, "x"), http.StatusUnprocessableEntity},
		{failure.New(failure.KindAlreadyProcessed, "x"), http.StatusConflict},
		{failure.New(failure.KindToolUnavailable, "x"), http.StatusServiceUnavailable},
		{failure.New(failure.KindTranscode, "x"), http.StatusBadGateway},
		{failure.New(failure.KindTimeout, "x"), http.StatusBadGateway},
		{failure.New(failure.KindPublish, "x"), http.StatusInternalServerError},
		{failure.New(failure.KindStore, "x"), http.StatusInternalServerError},
		{database.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteFailureHidesPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeFailure(w, nil, errors.New("sql: connection refused"))

	resp := decodeFailure(t, w.Body)
	if resp.Error != "internal error" {
		t.Errorf("error = %q, want internal error", resp.Error)
	}
}
