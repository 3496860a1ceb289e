// Package poster extracts a preview frame from a source video and stores
// it as a downscaled JPEG next to the HLS playlist.
package poster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hls-ingest/internal/layout"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/process"

	"github.com/disintegration/imaging"
)

const (
	DefaultWidth   = 480
	DefaultTimeout = 30 * time.Second
	jpegQuality    = 80
	frameName      = ".poster-frame.jpg"
)

var log = logging.For("poster")

// Config configures a Generator.
type Config struct {
	FFmpegPath string
	Width      int
	Timeout    time.Duration
}

// Generator writes poster images.
type Generator struct {
	runner process.Runner
	cfg    Config
}

// New creates a Generator.
func New(runner process.Runner, cfg Config) *Generator {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{runner: runner, cfg: cfg}
}

// Generate writes l.PosterPath from a frame of input. On error no poster
// file is left behind.
func (g *Generator) Generate(ctx context.Context, input string, l layout.Layout) error {
	bin, err := process.Resolve(g.cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return err
	}

	frame := filepath.Join(l.Dir, frameName)
	defer os.Remove(frame)

	// One second in skips black lead-in frames; very short clips need the
	// first frame instead.
	if err := g.extract(ctx, bin, input, frame, true); err != nil {
		log.Debug("frame at 1s failed for %s: %v, trying first frame", input, err)
		if err := g.extract(ctx, bin, input, frame, false); err != nil {
			return err
		}
	}

	img, err := imaging.Open(frame, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	if img.Bounds().Dx() > g.cfg.Width {
		img = imaging.Resize(img, g.cfg.Width, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, l.PosterPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = os.Remove(l.PosterPath)
		return fmt.Errorf("failed to save poster: %w", err)
	}

	log.Debug("poster written: %s", l.PosterPath)
	return nil
}

func (g *Generator) extract(ctx context.Context, bin, input, out string, seek bool) error {
	var args []string
	if seek {
		args = append(args, "-ss", "00:00:01")
	}
	args = append(args,
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", out,
	)

	res, err := g.runner.Run(ctx, process.Command{Path: bin, Args: args, Timeout: g.cfg.Timeout})
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("ffmpeg exited with status %d (timed out: %v)", res.ExitCode, res.TimedOut)
	}
	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no frame: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty frame")
	}
	return nil
}
