package transcoder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"hls-ingest/internal/process"
)

// DefaultProbeTimeout bounds a single duration probe.
const DefaultProbeTimeout = 30 * time.Second

// ErrNoDuration is returned when ffprobe ran but reported no usable duration.
var ErrNoDuration = errors.New("no duration reported")

// Prober reads container durations with ffprobe.
type Prober struct {
	runner  process.Runner
	path    string
	timeout time.Duration
}

// NewProber creates a Prober. An empty ffprobePath means PATH lookup.
func NewProber(runner process.Runner, ffprobePath string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{runner: runner, path: ffprobePath, timeout: timeout}
}

// ProbeDuration returns the duration of the media at path in seconds.
func (p *Prober) ProbeDuration(ctx context.Context, path string) (float64, error) {
	bin, err := process.Resolve(p.path, "ffprobe")
	if err != nil {
		return 0, err
	}

	res, err := p.runner.Run(ctx, process.Command{
		Path: bin,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
		Timeout: p.timeout,
	})
	if err != nil {
		return 0, err
	}
	if res.TimedOut {
		return 0, fmt.Errorf("ffprobe timed out after %v", p.timeout)
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("ffprobe exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return parseDuration(res.Stdout)
}

func parseDuration(out string) (float64, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	line = strings.TrimSpace(line)
	if line == "" || line == "N/A" {
		return 0, ErrNoDuration
	}
	d, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, line)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, line)
	}
	return d, nil
}
