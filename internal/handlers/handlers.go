package handlers

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"hls-ingest/internal/database"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/pipeline"
	"hls-ingest/internal/startup"
	"hls-ingest/internal/uploads"
)

var log = logging.For("http")

// AssetStore is the read side of the asset store used by the API.
type AssetStore interface {
	GetAsset(ctx context.Context, id int64) (*database.Asset, error)
	ListAssets(ctx context.Context, opts database.ListOptions) ([]database.Asset, error)
	CountAssetsByState(ctx context.Context) (map[string]int, error)
	GetLastRecovery(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
}

// Ingester runs the ingest pipeline.
type Ingester interface {
	Ingest(ctx context.Context, up pipeline.Upload) (*database.Asset, error)
	Process(ctx context.Context, id int64) (*database.Asset, error)
}

// Throttle reports whether new uploads should be refused for now.
type Throttle interface {
	IsPaused() bool
}

type Handlers struct {
	store          AssetStore
	ingester       Ingester
	uploads        *uploads.Store
	throttle       Throttle
	outputRoot     string
	pathPrefix     string
	maxUploadBytes int64
	startTime      time.Time
	ready          atomic.Bool
}

func New(store AssetStore, ingester Ingester, up *uploads.Store, config *startup.Config) *Handlers {
	return &Handlers{
		store:          store,
		ingester:       ingester,
		uploads:        up,
		outputRoot:     config.OutputRoot,
		pathPrefix:     strings.Trim(config.PublicPathPrefix, "/"),
		maxUploadBytes: config.MaxUploadBytes(),
		startTime:      time.Now(),
	}
}

// WithThrottle makes uploads answer 503 while t is paused.
func (h *Handlers) WithThrottle(t Throttle) *Handlers {
	h.throttle = t
	return h
}

// SetReady marks startup (including recovery) as finished.
func (h *Handlers) SetReady() {
	h.ready.Store(true)
}

// IsReady reports whether startup has finished.
func (h *Handlers) IsReady() bool {
	return h.ready.Load()
}

// PathPrefix is the URL prefix processed files are served under.
func (h *Handlers) PathPrefix() string {
	return "/" + h.pathPrefix + "/"
}
