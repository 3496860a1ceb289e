package transcoder

import (
	"context"
	"errors"
	"time"

	"hls-ingest/internal/failure"
	"hls-ingest/internal/layout"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/metrics"
	"hls-ingest/internal/process"
)

// DefaultTimeout is the encode budget when none is configured.
const DefaultTimeout = 300 * time.Second

var log = logging.For("transcoder")

// Config configures a Transcoder.
type Config struct {
	// FFmpegPath overrides the PATH lookup of "ffmpeg".
	FFmpegPath string
	Timeout    time.Duration
	// Nice lowers the encoder's CPU priority.
	Nice    int
	Profile Profile
}

// Transcoder runs HLS encodes.
type Transcoder struct {
	runner process.Runner
	cfg    Config
}

// Job is one encode invocation. It is not persisted.
type Job struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// New creates a Transcoder.
func New(runner process.Runner, cfg Config) *Transcoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Transcoder{runner: runner, cfg: cfg}
}

// EncoderPath resolves the ffmpeg executable.
func (t *Transcoder) EncoderPath() (string, error) {
	return process.Resolve(t.cfg.FFmpegPath, "ffmpeg")
}

// NewJob resolves the encoder and builds the job for input and l.
func (t *Transcoder) NewJob(input string, l layout.Layout) (Job, error) {
	path, err := t.EncoderPath()
	if err != nil {
		return Job{}, err
	}
	return Job{
		Path:    path,
		Args:    t.cfg.Profile.Args(input, l),
		Timeout: t.cfg.Timeout,
	}, nil
}

// Transcode encodes input into the HLS layout l. Exit status 0 is the only
// success. Partial output left behind on failure is the caller's to remove.
func (t *Transcoder) Transcode(ctx context.Context, input string, l layout.Layout) (*process.Result, error) {
	job, err := t.NewJob(input, l)
	if err != nil {
		metrics.TranscoderJobsTotal.WithLabelValues("tool_unavailable").Inc()
		return nil, err
	}

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	log.Info("encoding %s -> %s", input, l.Dir)
	res, err := t.runner.Run(ctx, process.Command{
		Path:    job.Path,
		Args:    job.Args,
		Timeout: job.Timeout,
		Nice:    t.cfg.Nice,
	})
	if res != nil {
		metrics.TranscoderJobDuration.Observe(res.Elapsed.Seconds())
	}

	switch {
	case err != nil:
		if errors.Is(err, failure.ErrToolUnavailable) {
			metrics.TranscoderJobsTotal.WithLabelValues("tool_unavailable").Inc()
			return nil, err
		}
		metrics.TranscoderJobsTotal.WithLabelValues("failure").Inc()
		return res, failure.Wrap(failure.KindTranscode, err, "encode of %s interrupted", input)

	case res.TimedOut:
		metrics.TranscoderJobsTotal.WithLabelValues("timeout").Inc()
		log.Warn("encode of %s exceeded %v", input, job.Timeout)
		return res, failure.New(failure.KindTimeout, "encoder exceeded %v", job.Timeout).
			WithDiagnostics(res.Diagnostics())

	case res.ExitCode != 0:
		metrics.TranscoderJobsTotal.WithLabelValues("failure").Inc()
		log.Error("encode of %s failed with exit status %d", input, res.ExitCode)
		log.Debug("encoder stderr: %s", res.Diagnostics())
		return res, failure.New(failure.KindTranscode, "encoder exited with status %d", res.ExitCode).
			WithDiagnostics(res.Diagnostics())
	}

	metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
	log.Info("encoded %s in %v", input, res.Elapsed.Round(time.Millisecond))
	return res, nil
}
