package pipeline

import (
	"hls-ingest/internal/database"
	"hls-ingest/internal/poster"
	"hls-ingest/internal/process"
	"hls-ingest/internal/publisher"
	"hls-ingest/internal/startup"
	"hls-ingest/internal/transcoder"
	"hls-ingest/internal/validator"
)

// Build wires a Pipeline for cfg backed by db and the real ffmpeg tools.
func Build(db *database.Database, cfg *startup.Config) *Pipeline {
	runner := process.NewExecRunner()

	prober := transcoder.NewProber(runner, cfg.FFprobePath, cfg.ProbeTimeout)
	deps := Deps{
		Store:     db,
		Validator: validator.New(cfg.ValidatorPolicy(), prober),
		Encoder:   transcoder.New(runner, cfg.TranscoderConfig()),
		Publisher: publisher.New(db, cfg.PublisherConfig()),
	}
	if cfg.PosterEnabled {
		deps.Poster = poster.New(runner, cfg.PosterConfig())
	}

	return New(deps, Config{OutputRoot: cfg.OutputRoot})
}
