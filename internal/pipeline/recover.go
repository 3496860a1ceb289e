package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hls-ingest/internal/database"
	"hls-ingest/internal/filesystem"
	"hls-ingest/internal/metrics"
)

const interruptedReason = "interrupted: processing did not finish before the service stopped"

// Recover rejects assets whose run was cut off by a crash or restart and
// removes their partial output. Every asset in transcoding is assumed
// abandoned, so the caller must make sure no other process is running the
// pipeline on the same database (see database.RunLock).
//
// An asset is only cleaned up once its rejection is recorded. Output of
// rejected assets left behind by an earlier crash is removed as well.
func (p *Pipeline) Recover(ctx context.Context) (int, error) {
	assets, err := p.deps.Store.ListInterrupted(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list interrupted assets: %w", err)
	}

	var (
		recovered int
		errs      []error
	)
	for _, a := range assets {
		if err := p.deps.Store.RejectAsset(ctx, a.ID, interruptedReason); err != nil {
			if errors.Is(err, database.ErrStateConflict) {
				log.Info("asset %d is no longer transcoding, leaving its output", a.ID)
				continue
			}
			errs = append(errs, fmt.Errorf("asset %d: %w", a.ID, err))
			continue
		}
		recovered++
		log.Warn("asset %d: interrupted run rejected", a.ID)
	}

	// Covers the assets rejected above, failed runs whose cleanup did not
	// finish, and a crash between a rejection and its cleanup.
	errs = append(errs, p.removeRejectedOutputs(ctx)...)

	if err := p.deps.Store.SetLastRecovery(ctx, p.cfg.Now()); err != nil {
		errs = append(errs, fmt.Errorf("failed to record recovery time: %w", err))
	}

	return recovered, errors.Join(errs...)
}

// removeRejectedOutputs deletes what is left of rejected assets' output
// directories and then forgets them.
func (p *Pipeline) removeRejectedOutputs(ctx context.Context) []error {
	assets, err := p.deps.Store.ListRejectedOutputs(ctx)
	if err != nil {
		return []error{fmt.Errorf("failed to list rejected outputs: %w", err)}
	}

	var errs []error
	for _, a := range assets {
		if !p.insideOutputRoot(a.OutputDir) {
			log.Warn("asset %d: output dir %s is outside %s, leaving it", a.ID, a.OutputDir, p.cfg.OutputRoot)
		} else if _, err := os.Lstat(a.OutputDir); err == nil {
			if err := filesystem.RemoveAllWithRetry(a.OutputDir, filesystem.DefaultRetryConfig()); err != nil {
				metrics.ArtifactCleanupsTotal.WithLabelValues("error").Inc()
				errs = append(errs, fmt.Errorf("asset %d: %w", a.ID, err))
				continue
			}
			metrics.ArtifactCleanupsTotal.WithLabelValues("success").Inc()
			log.Info("asset %d: removed leftover output %s", a.ID, a.OutputDir)
		}

		if err := p.deps.Store.ClearOutputDir(ctx, a.ID); err != nil && !errors.Is(err, database.ErrStateConflict) {
			errs = append(errs, fmt.Errorf("asset %d: %w", a.ID, err))
		}
	}
	return errs
}

func (p *Pipeline) insideOutputRoot(dir string) bool {
	if p.cfg.OutputRoot == "" {
		return false
	}
	root := filepath.Clean(p.cfg.OutputRoot) + string(filepath.Separator)
	return strings.HasPrefix(filepath.Clean(dir)+string(filepath.Separator), root) &&
		filepath.Clean(dir) != filepath.Clean(p.cfg.OutputRoot)
}
