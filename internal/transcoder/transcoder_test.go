package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hls-ingest/internal/failure"
	"hls-ingest/internal/layout"
	"hls-ingest/internal/playlist"
	"hls-ingest/internal/process"
	"hls-ingest/internal/testutil"
)

// fakeRunner records commands and returns a canned result.
type fakeRunner struct {
	commands []process.Command
	result   *process.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, c process.Command) (*process.Result, error) {
	f.commands = append(f.commands, c)
	return f.result, f.err
}

func fakeTool(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLayout(t *testing.T) layout.Layout {
	t.Helper()
	l := layout.For(t.TempDir(), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 7, "clip.mp4")
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestProfileArgs(t *testing.T) {
	l := layout.For("/out", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 7, "clip.mp4")
	args := DefaultProfile().Args("/in/clip.mp4", l)

	want := []string{
		"-i", "/in/clip.mp4",
		"-threads", "2",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-maxrate", "2000k",
		"-bufsize", "4000k",
		"-crf", "27",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "44100",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join("/out", "26", "stream_clip_7", "segment_%03d.ts"),
		"-f", "hls",
		"-y", filepath.Join("/out", "26", "stream_clip_7", "playlist.m3u8"),
	}

	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("Args mismatch\n got: %v\nwant: %v", args, want)
	}
}

func TestProfileArgsCustom(t *testing.T) {
	p := DefaultProfile()
	p.MaxrateKbps = 3000
	p.CRF = 23
	args := strings.Join(p.Args("in.mp4", layout.For("/out", time.Now(), 1, "a.mp4")), " ")

	for _, frag := range []string{"-maxrate 3000k", "-bufsize 6000k", "-crf 23"} {
		if !strings.Contains(args, frag) {
			t.Errorf("expected %q in %s", frag, args)
		}
	}
}

func TestTranscodeResultMapping(t *testing.T) {
	tests := []struct {
		name   string
		result *process.Result
		err    error
		kind   failure.Kind
	}{
		{"success", &process.Result{ExitCode: 0}, nil, ""},
		{"non-zero exit", &process.Result{ExitCode: 1, Stderr: "moov atom not found"}, nil, failure.KindTranscode},
		{"timeout", &process.Result{ExitCode: -1, TimedOut: true}, nil, failure.KindTimeout},
		{"canceled", &process.Result{ExitCode: -1}, context.Canceled, failure.KindTranscode},
		{"tool vanished", nil, failure.New(failure.KindToolUnavailable, "gone"), failure.KindToolUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: tt.result, err: tt.err}
			tr := New(runner, Config{FFmpegPath: fakeTool(t, "ffmpeg"), Timeout: time.Minute, Nice: 5, Profile: DefaultProfile()})

			_, err := tr.Transcode(context.Background(), "in.mp4", testLayout(t))
			if got := failure.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (err=%v)", got, tt.kind, err)
			}
			if len(runner.commands) != 1 {
				t.Fatalf("expected one command, got %d", len(runner.commands))
			}
			if runner.commands[0].Timeout != time.Minute || runner.commands[0].Nice != 5 {
				t.Errorf("unexpected command settings: %+v", runner.commands[0])
			}
		})
	}
}

func TestTranscodeDiagnostics(t *testing.T) {
	runner := &fakeRunner{result: &process.Result{ExitCode: 1, Stderr: "Invalid data found when processing input"}}
	tr := New(runner, Config{FFmpegPath: fakeTool(t, "ffmpeg"), Profile: DefaultProfile()})

	_, err := tr.Transcode(context.Background(), "in.mp4", testLayout(t))
	var fe *failure.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *failure.Error, got %v", err)
	}
	if !strings.Contains(fe.Diagnostics, "Invalid data") {
		t.Errorf("Diagnostics = %q", fe.Diagnostics)
	}
}

func TestTranscodeDiagnosticsMarkTruncation(t *testing.T) {
	runner := &fakeRunner{result: &process.Result{
		ExitCode:        1,
		Stderr:          "Error while decoding stream #0:0",
		StderrTruncated: true,
	}}
	tr := New(runner, Config{FFmpegPath: fakeTool(t, "ffmpeg"), Profile: DefaultProfile()})

	_, err := tr.Transcode(context.Background(), "in.mp4", testLayout(t))
	var fe *failure.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *failure.Error, got %v", err)
	}
	if fe.Diagnostics != "...Error while decoding stream #0:0" {
		t.Errorf("Diagnostics = %q", fe.Diagnostics)
	}
}

func TestTranscodeToolUnavailable(t *testing.T) {
	runner := &fakeRunner{}
	tr := New(runner, Config{FFmpegPath: filepath.Join(t.TempDir(), "missing-ffmpeg")})

	_, err := tr.Transcode(context.Background(), "in.mp4", testLayout(t))
	if !errors.Is(err, failure.ErrToolUnavailable) {
		t.Fatalf("expected tool_unavailable, got %v", err)
	}
	if len(runner.commands) != 0 {
		t.Error("no command should run when the tool is missing")
	}
}

func TestNewDefaultsTimeout(t *testing.T) {
	job, err := New(&fakeRunner{}, Config{FFmpegPath: fakeTool(t, "ffmpeg")}).NewJob("in.mp4", testLayout(t))
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.Timeout != DefaultTimeout {
		t.Errorf("job.Timeout = %v, want %v", job.Timeout, DefaultTimeout)
	}
}

func TestTranscodeWithStubEncoder(t *testing.T) {
	ffmpeg := testutil.FakeFFmpeg(t)
	tr := New(process.NewExecRunner(), Config{FFmpegPath: ffmpeg.Path, Timeout: 10 * time.Second, Profile: DefaultProfile()})
	l := testLayout(t)

	if _, err := tr.Transcode(context.Background(), "in.mp4", l); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	pl, err := playlist.ParseMedia(l.PlaylistPath)
	if err != nil {
		t.Fatalf("ParseMedia failed: %v", err)
	}
	if pl.Count != 2 || len(pl.Missing()) != 0 {
		t.Errorf("unexpected playlist: %+v", pl)
	}
}

func TestTranscodeTimeoutWithStubEncoder(t *testing.T) {
	ffmpeg := testutil.HangingFFmpeg(t)
	tr := New(process.NewExecRunner(), Config{FFmpegPath: ffmpeg.Path, Timeout: 300 * time.Millisecond, Profile: DefaultProfile()})

	start := time.Now()
	_, err := tr.Transcode(context.Background(), "in.mp4", testLayout(t))
	if !errors.Is(err, failure.ErrTimeout) {
		t.Fatalf("expected transcode_timeout, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

// TestTranscodeRealFFmpeg encodes a generated two second clip.
func TestTranscodeRealFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	gen := exec.Command(ffmpeg, "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2", "-shortest", "-c:v", "libx264", "-c:a", "aac", "-y", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip (missing encoders?): %v: %s", err, out)
	}

	tr := New(process.NewExecRunner(), Config{Timeout: time.Minute, Profile: DefaultProfile()})
	l := testLayout(t)
	if _, err := tr.Transcode(context.Background(), src, l); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	pl, err := playlist.ParseMedia(l.PlaylistPath)
	if err != nil {
		t.Fatalf("ParseMedia failed: %v", err)
	}
	if pl.Count == 0 || len(pl.Missing()) != 0 {
		t.Errorf("unexpected playlist: %+v", pl)
	}
	if !pl.IndependentSegments {
		t.Error("expected independent segments flag")
	}

	prober := NewProber(process.NewExecRunner(), "", 0)
	d, err := prober.ProbeDuration(context.Background(), src)
	if err != nil {
		t.Skipf("ffprobe unavailable: %v", err)
	}
	if d < 1.5 || d > 2.5 {
		t.Errorf("probed duration = %f, want about 2", d)
	}
}
