package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"hls-ingest/internal/database"
	"hls-ingest/internal/failure"
	"hls-ingest/internal/layout"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/metrics"
	"hls-ingest/internal/process"
	"hls-ingest/internal/publisher"
	"hls-ingest/internal/validator"
)

// cleanupTimeout bounds the rejection write after a failed run. It runs on
// a context detached from the caller so a canceled request still leaves a
// consistent record.
const cleanupTimeout = 10 * time.Second

var log = logging.For("pipeline")

// Store is the asset persistence the pipeline needs.
type Store interface {
	CreateAsset(ctx context.Context, a *database.Asset) error
	GetAsset(ctx context.Context, id int64) (*database.Asset, error)
	ClaimForTranscoding(ctx context.Context, id int64, outputDir string, duration float64) error
	RejectAsset(ctx context.Context, id int64, reason string) error
	ListInterrupted(ctx context.Context) ([]database.Asset, error)
	ListRejectedOutputs(ctx context.Context) ([]database.Asset, error)
	ClearOutputDir(ctx context.Context, id int64) error
	SetLastRecovery(ctx context.Context, t time.Time) error
}

// Validator gates uploads.
type Validator interface {
	Validate(ctx context.Context, c validator.Candidate) (validator.Verdict, error)
}

// Encoder produces the HLS package for one layout.
type Encoder interface {
	Transcode(ctx context.Context, input string, l layout.Layout) (*process.Result, error)
}

// PosterMaker writes a preview image into the layout.
type PosterMaker interface {
	Generate(ctx context.Context, input string, l layout.Layout) error
}

// Deps are the pipeline's collaborators. Poster is optional.
type Deps struct {
	Store     Store
	Validator Validator
	Encoder   Encoder
	Publisher *publisher.Publisher
	Poster    PosterMaker
}

// Config configures a Pipeline.
type Config struct {
	OutputRoot string
	// Now supplies the publication time used for output sharding.
	Now func() time.Time
}

// Pipeline sequences the ingest of one asset. It is safe for concurrent use;
// each call runs in the caller's goroutine.
type Pipeline struct {
	deps Deps
	cfg  Config
	runs sync.WaitGroup
}

// Upload is a stored upload handed over for processing.
type Upload struct {
	Label string
	Name  string
	Path  string
	Size  int64
	Hash  string
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// Ingest validates up and, when accepted, records and processes it.
//
// A rejected upload is returned as an unsaved asset in state rejected with
// a validation error; nothing is written. Any later failure returns the
// saved asset in state rejected together with the error.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (*database.Asset, error) {
	p.runs.Add(1)
	defer p.runs.Done()

	start := time.Now()
	metrics.PipelineRunsInProgress.Inc()
	defer metrics.PipelineRunsInProgress.Dec()

	asset := &database.Asset{
		Label:      up.Label,
		SourcePath: up.Path,
		SourceName: up.Name,
		SourceSize: up.Size,
		SourceHash: up.Hash,
		State:      database.StateValidating,
	}

	verdict, err := p.validate(ctx, asset)
	if err != nil {
		asset.State = database.StateRejected
		asset.Reason = rejectionReason(err)
		p.observe(start, err)
		log.Info("rejected %s: %s", up.Name, asset.Reason)
		return asset, err
	}
	asset.Duration = verdict.Duration

	if err := p.deps.Store.CreateAsset(ctx, asset); err != nil {
		err = failure.Wrap(failure.KindStore, err, "cannot record asset")
		p.observe(start, err)
		return nil, err
	}
	log.Info("asset %d created for %s", asset.ID, up.Name)

	err = p.run(ctx, asset)
	p.observe(start, err)
	return asset, err
}

// Process runs the pipeline for an asset that is already recorded. Only
// assets in state created are processed; any other state returns an
// already_processed error and changes nothing.
func (p *Pipeline) Process(ctx context.Context, id int64) (*database.Asset, error) {
	p.runs.Add(1)
	defer p.runs.Done()

	asset, err := p.deps.Store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.State != database.StateCreated {
		err := failure.New(failure.KindAlreadyProcessed, "asset %d is %s", id, asset.State)
		metrics.PipelineRejectionsTotal.WithLabelValues(string(failure.KindAlreadyProcessed)).Inc()
		return asset, err
	}

	start := time.Now()
	metrics.PipelineRunsInProgress.Inc()
	defer metrics.PipelineRunsInProgress.Dec()

	verdict, err := p.validate(ctx, asset)
	if err != nil {
		p.reject(ctx, asset, nil, err)
		p.observe(start, err)
		return asset, err
	}
	asset.Duration = verdict.Duration

	err = p.run(ctx, asset)
	p.observe(start, err)
	return asset, err
}

// Wait blocks until every Ingest and Process call in progress has returned,
// including its cleanup, or until ctx is done. Callers stop starting new
// runs first.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) validate(ctx context.Context, a *database.Asset) (validator.Verdict, error) {
	if n := utf8.RuneCountInString(a.Label); n > database.MaxLabelLength {
		return validator.Verdict{}, failure.New(failure.KindValidation,
			"label cannot exceed %d characters", database.MaxLabelLength)
	}
	return p.deps.Validator.Validate(ctx, validator.Candidate{
		Name: a.SourceName,
		Size: a.SourceSize,
		Path: a.SourcePath,
	})
}

// run owns the asset from claim to publication. Once the claim succeeds,
// every failure path goes through reject.
func (p *Pipeline) run(ctx context.Context, asset *database.Asset) (err error) {
	l := layout.For(p.cfg.OutputRoot, p.cfg.Now(), asset.ID, asset.SourceName)

	if err := p.deps.Store.ClaimForTranscoding(ctx, asset.ID, l.Dir, asset.Duration); err != nil {
		if errors.Is(err, database.ErrStateConflict) {
			return failure.Wrap(failure.KindAlreadyProcessed, err, "asset %d was claimed by another run", asset.ID)
		}
		return failure.Wrap(failure.KindStore, err, "cannot claim asset %d", asset.ID)
	}
	asset.State = database.StateTranscoding
	asset.OutputDir = l.Dir

	var attempt *publisher.Attempt
	defer func() {
		if err != nil {
			p.reject(ctx, asset, attempt, err)
		}
	}()

	attempt, err = p.deps.Publisher.Prepare(l)
	if err != nil {
		return err
	}

	if _, err = p.deps.Encoder.Transcode(ctx, asset.SourcePath, l); err != nil {
		return err
	}

	if p.deps.Poster != nil {
		if perr := p.deps.Poster.Generate(ctx, asset.SourcePath, l); perr != nil {
			log.Warn("asset %d: no poster: %v", asset.ID, perr)
		}
	}

	var ref string
	ref, err = p.deps.Publisher.Publish(ctx, asset.ID, l)
	if err != nil {
		return err
	}
	attempt.Commit()

	asset.State = database.StatePublished
	asset.ProcessedRef = ref
	if fresh, gerr := p.deps.Store.GetAsset(ctx, asset.ID); gerr == nil {
		*asset = *fresh
	}
	return nil
}

// reject removes the attempt's artifacts and then marks the asset rejected.
func (p *Pipeline) reject(ctx context.Context, asset *database.Asset, attempt *publisher.Attempt, cause error) {
	if attempt != nil {
		if err := attempt.Release(); err != nil {
			log.Error("asset %d: cleanup failed: %v", asset.ID, err)
		}
	}

	reason := rejectionReason(cause)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := p.deps.Store.RejectAsset(cctx, asset.ID, reason); err != nil && !errors.Is(err, database.ErrStateConflict) {
		log.Error("asset %d: cannot record rejection: %v", asset.ID, err)
	}
	asset.State = database.StateRejected
	asset.ProcessedRef = ""
	asset.Reason = reason
	log.Warn("asset %d rejected: %s", asset.ID, reason)
}

func (p *Pipeline) observe(start time.Time, err error) {
	metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.PipelineRunsTotal.WithLabelValues("published").Inc()
		return
	}
	metrics.PipelineRunsTotal.WithLabelValues("rejected").Inc()
	kind := failure.KindOf(err)
	if kind == "" {
		kind = failure.KindStore
	}
	metrics.PipelineRejectionsTotal.WithLabelValues(string(kind)).Inc()
}

// rejectionReason is the text stored on a rejected asset.
func rejectionReason(err error) string {
	kind := failure.KindOf(err)
	if kind == "" || kind == failure.KindValidation {
		return failure.ReasonOf(err)
	}
	return fmt.Sprintf("%s: %s", kind, failure.ReasonOf(err))
}
