// Package publisher owns an attempt's output directory and turns a
// finished encode into a published asset.
//
// Prepare claims a fresh directory for one attempt. Until the attempt is
// committed, Release removes the directory and everything in it. Publish
// verifies the playlist and every segment it lists, normalizes
// permissions, and writes the public reference in one conditional update.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hls-ingest/internal/database"
	"hls-ingest/internal/failure"
	"hls-ingest/internal/filesystem"
	"hls-ingest/internal/layout"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/metrics"
	"hls-ingest/internal/playlist"
)

const (
	dirMode  fs.FileMode = 0o755
	fileMode fs.FileMode = 0o644
)

var log = logging.For("publisher")

// Store records a publication.
type Store interface {
	PublishAsset(ctx context.Context, id int64, processedRef, posterRef string) error
}

// Config controls how references are built and files are finalized.
type Config struct {
	// PathPrefix is prepended to the output-relative path, e.g. "processed".
	PathPrefix string
	// BaseURL, when set, makes references absolute URLs.
	BaseURL              string
	NormalizePermissions bool
	Retry                filesystem.RetryConfig
}

// Publisher prepares and publishes output directories.
type Publisher struct {
	store Store
	cfg   Config
}

// New creates a Publisher.
func New(store Store, cfg Config) *Publisher {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	return &Publisher{store: store, cfg: cfg}
}

// Attempt is one claimed output directory.
type Attempt struct {
	layout    layout.Layout
	retry     filesystem.RetryConfig
	mu        sync.Mutex
	committed bool
	released  bool
}

// Prepare creates l.Dir for a new attempt. The leaf directory must not
// already exist: an existing directory belongs to someone else and is
// neither reused nor removed.
func (p *Publisher) Prepare(l layout.Layout) (*Attempt, error) {
	if err := os.MkdirAll(filepath.Dir(l.Dir), dirMode); err != nil {
		return nil, failure.Wrap(failure.KindPublish, err, "cannot create output parent for %s", l.Rel())
	}
	if err := os.Mkdir(l.Dir, dirMode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, failure.Wrap(failure.KindPublish, err, "output directory %s already exists", l.Rel())
		}
		return nil, failure.Wrap(failure.KindPublish, err, "cannot create output directory %s", l.Rel())
	}
	log.Debug("prepared %s", l.Dir)
	return &Attempt{layout: l, retry: p.cfg.Retry}, nil
}

// Commit marks the attempt's artifacts as published so Release keeps them.
func (a *Attempt) Commit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = true
}

// Release removes the attempt's directory unless it was committed. It is
// safe to call more than once.
func (a *Attempt) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.committed || a.released {
		return nil
	}
	if err := filesystem.RemoveAllWithRetry(a.layout.Dir, a.retry); err != nil {
		metrics.ArtifactCleanupsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to remove %s: %w", a.layout.Dir, err)
	}
	a.released = true
	metrics.ArtifactCleanupsTotal.WithLabelValues("success").Inc()
	log.Info("removed artifacts in %s", a.layout.Dir)
	return nil
}

// Publish verifies the encode in l and publishes it for asset id. It
// returns the processed reference recorded on the asset.
func (p *Publisher) Publish(ctx context.Context, id int64, l layout.Layout) (string, error) {
	if _, err := filesystem.StatWithRetry(l.PlaylistPath, p.cfg.Retry); err != nil {
		return "", failure.Wrap(failure.KindPublish, err, "playlist missing after successful encode")
	}

	pl, err := playlist.ParseMedia(l.PlaylistPath)
	if err != nil {
		return "", failure.Wrap(failure.KindPublish, err, "malformed playlist")
	}
	if pl.Count == 0 {
		return "", failure.New(failure.KindPublish, "playlist lists no segments")
	}
	if missing := pl.Missing(); len(missing) > 0 {
		return "", failure.New(failure.KindPublish, "%d of %d segments missing (%s)",
			len(missing), pl.Count, strings.Join(missing, ", "))
	}

	if p.cfg.NormalizePermissions {
		if err := normalizePermissions(l.Dir); err != nil {
			return "", failure.Wrap(failure.KindPublish, err, "cannot normalize permissions")
		}
	}

	ref := p.Reference(l.RelPlaylist())
	posterRef := ""
	if filesystem.Exists(l.PosterPath, p.cfg.Retry) {
		posterRef = p.Reference(l.RelPoster())
	}

	if err := p.store.PublishAsset(ctx, id, ref, posterRef); err != nil {
		if errors.Is(err, database.ErrStateConflict) {
			return "", failure.Wrap(failure.KindPublish, err, "asset %d is no longer transcoding", id)
		}
		return "", failure.Wrap(failure.KindPublish, err, "cannot record publication")
	}

	log.Info("published asset %d: %s (%d segments, %.1fs)", id, ref, pl.Count, pl.TotalDuration())
	return ref, nil
}

// Reference builds the public reference for an output-relative path.
func (p *Publisher) Reference(rel string) string {
	return layout.Reference(p.cfg.PathPrefix, p.cfg.BaseURL, rel)
}

// normalizePermissions makes dir and its contents world readable.
func normalizePermissions(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		mode := fileMode
		if d.IsDir() {
			mode = dirMode
		}
		return os.Chmod(path, mode)
	})
}
