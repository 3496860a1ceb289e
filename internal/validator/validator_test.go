package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hls-ingest/internal/failure"
	"hls-ingest/internal/process"
	"hls-ingest/internal/testutil"
	"hls-ingest/internal/transcoder"
)

// countingProber returns a fixed duration or error and counts calls.
type countingProber struct {
	duration float64
	err      error
	calls    int
}

func (p *countingProber) ProbeDuration(_ context.Context, _ string) (float64, error) {
	p.calls++
	return p.duration, p.err
}

func sourceFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateOrderAndShortCircuit(t *testing.T) {
	tests := []struct {
		name       string
		candidate  Candidate
		duration   float64
		wantReason string
		wantProbes int
	}{
		{
			name:       "oversized rejects before extension",
			candidate:  Candidate{Name: "clip.exe", Size: DefaultMaxBytes + 1},
			wantReason: "video size cannot exceed 100MB",
		},
		{
			name:       "bad extension",
			candidate:  Candidate{Name: "clip.flv", Size: 10},
			wantReason: "unsupported file type",
		},
		{
			name:       "no extension",
			candidate:  Candidate{Name: "clip", Size: 10},
			wantReason: "unsupported file type",
		},
		{
			name:       "too long",
			candidate:  Candidate{Name: "clip.mp4", Size: 10, Path: "probe"},
			duration:   601,
			wantReason: "cannot exceed 10m0s",
			wantProbes: 1,
		},
		{
			name:       "exactly at limit",
			candidate:  Candidate{Name: "clip.mp4", Size: DefaultMaxBytes, Path: "probe"},
			duration:   600,
			wantProbes: 1,
		},
		{
			name:       "uppercase extension",
			candidate:  Candidate{Name: "CLIP.MOV", Size: 10, Path: "probe"},
			duration:   5,
			wantProbes: 1,
		},
		{
			name:      "no path skips probe",
			candidate: Candidate{Name: "clip.webm", Size: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.candidate.Path == "probe" {
				tt.candidate.Path = sourceFile(t, tt.candidate.Name)
			}
			prober := &countingProber{duration: tt.duration}
			v := New(DefaultPolicy(), prober)

			_, err := v.Validate(context.Background(), tt.candidate)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("expected accepted, got %v", err)
				}
			} else {
				if !errors.Is(err, failure.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if !strings.Contains(failure.ReasonOf(err), tt.wantReason) {
					t.Errorf("reason = %q, want it to contain %q", failure.ReasonOf(err), tt.wantReason)
				}
			}
			if prober.calls != tt.wantProbes {
				t.Errorf("probe calls = %d, want %d", prober.calls, tt.wantProbes)
			}
		})
	}
}

func TestValidateDurationSoftGate(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"tool unavailable", failure.New(failure.KindToolUnavailable, "ffprobe not found in PATH")},
		{"timeout", errors.New("ffprobe timed out after 30s")},
		{"unparseable", transcoder.ErrNoDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &countingProber{err: tt.err}
			v := New(DefaultPolicy(), prober)

			verdict, err := v.Validate(context.Background(), Candidate{Name: "long.mp4", Size: 10, Path: sourceFile(t, "long.mp4")})
			if err != nil {
				t.Fatalf("probe failure must not reject: %v", err)
			}
			if verdict.DurationChecked {
				t.Error("DurationChecked should be false when the probe failed")
			}
			if prober.calls != 1 {
				t.Errorf("probe calls = %d, want 1", prober.calls)
			}
		})
	}
}

func TestValidateVerdictCarriesDuration(t *testing.T) {
	v := New(DefaultPolicy(), &countingProber{duration: 42.5})
	verdict, err := v.Validate(context.Background(), Candidate{Name: "a.mkv", Size: 1, Path: sourceFile(t, "a.mkv")})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !verdict.DurationChecked || verdict.Duration != 42.5 {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestValidateMissingPathSkipsProbe(t *testing.T) {
	prober := &countingProber{duration: 9999}
	v := New(DefaultPolicy(), prober)

	_, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 1, Path: filepath.Join(t.TempDir(), "gone.mp4")})
	if err != nil {
		t.Fatalf("expected accepted, got %v", err)
	}
	if prober.calls != 0 {
		t.Errorf("probe calls = %d, want 0", prober.calls)
	}
}

func TestValidateCustomPolicy(t *testing.T) {
	v := New(Policy{MaxBytes: 1024, MaxDuration: 30 * time.Second}, &countingProber{duration: 31})

	if _, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 2048}); !errors.Is(err, failure.ErrValidation) {
		t.Errorf("expected size rejection, got %v", err)
	}
	if _, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 10, Path: sourceFile(t, "a.mp4")}); !errors.Is(err, failure.ErrValidation) {
		t.Errorf("expected duration rejection, got %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(Policy{}, nil).Policy()
	if p.MaxBytes != DefaultMaxBytes || p.MaxDuration != DefaultMaxDuration {
		t.Errorf("Policy() = %+v", p)
	}
}

// TestValidateWithStubProber exercises the real probe path end to end.
func TestValidateWithStubProber(t *testing.T) {
	t.Run("over limit rejects", func(t *testing.T) {
		ffprobe := testutil.FakeFFprobe(t, "900.0", "0")
		v := New(DefaultPolicy(), transcoder.NewProber(process.NewExecRunner(), ffprobe.Path, 5*time.Second))

		_, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 1, Path: sourceFile(t, "a.mp4")})
		if !errors.Is(err, failure.ErrValidation) {
			t.Errorf("expected duration rejection, got %v", err)
		}
	})

	t.Run("unavailable probe accepts", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "ffprobe")
		v := New(DefaultPolicy(), transcoder.NewProber(process.NewExecRunner(), missing, 5*time.Second))

		if _, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 1, Path: sourceFile(t, "a.mp4")}); err != nil {
			t.Errorf("expected accepted, got %v", err)
		}
	})

	t.Run("N/A output accepts", func(t *testing.T) {
		ffprobe := testutil.FakeFFprobe(t, "N/A", "0")
		v := New(DefaultPolicy(), transcoder.NewProber(process.NewExecRunner(), ffprobe.Path, 5*time.Second))

		if _, err := v.Validate(context.Background(), Candidate{Name: "a.mp4", Size: 1, Path: sourceFile(t, "a.mp4")}); err != nil {
			t.Errorf("expected accepted, got %v", err)
		}
	})
}

func TestTooLarge(t *testing.T) {
	tests := []struct {
		max  int64
		want string
	}{
		{100 * 1024 * 1024, "video size cannot exceed 100MB"},
		{1500, "video size cannot exceed 1500 bytes"},
	}

	for _, tt := range tests {
		err := TooLarge(tt.max)
		if !errors.Is(err, failure.ErrValidation) {
			t.Errorf("TooLarge(%d) is not a validation error", tt.max)
		}
		if err.Reason != tt.want {
			t.Errorf("TooLarge(%d) reason = %q, want %q", tt.max, err.Reason, tt.want)
		}
	}
}
