// Package validator decides whether an uploaded file may enter the
// transcode pipeline.
//
// Size and extension are hard gates checked without spawning anything.
// Duration is a soft gate: when the probe cannot produce a value the check
// is skipped with a warning instead of rejecting the file.
package validator

import (
	"context"
	"fmt"
	"os"
	"time"

	"hls-ingest/internal/failure"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/mediatypes"
	"hls-ingest/internal/metrics"
)

const (
	DefaultMaxBytes    int64 = 100 * 1024 * 1024
	DefaultMaxDuration       = 600 * time.Second
)

var log = logging.For("validator")

// DurationProber reports a media file's duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Policy holds the acceptance limits.
type Policy struct {
	MaxBytes    int64
	MaxDuration time.Duration
}

// DefaultPolicy returns the 100 MiB / 10 minute policy.
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, MaxDuration: DefaultMaxDuration}
}

// Candidate describes the file to validate. Path may be empty when the
// bytes are not locally accessible; the duration check is then skipped.
type Candidate struct {
	Name string
	Size int64
	Path string
}

// Verdict carries what validation learned about an accepted file.
type Verdict struct {
	Duration        float64
	DurationChecked bool
}

// Validator applies a Policy.
type Validator struct {
	policy Policy
	prober DurationProber
}

// New creates a Validator. A nil prober disables the duration check.
func New(policy Policy, prober DurationProber) *Validator {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultMaxBytes
	}
	if policy.MaxDuration <= 0 {
		policy.MaxDuration = DefaultMaxDuration
	}
	return &Validator{policy: policy, prober: prober}
}

// Policy returns the effective limits.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate checks c in order: size, extension, duration. A nil error means
// accepted; a rejection is a *failure.Error of kind validation.
func (v *Validator) Validate(ctx context.Context, c Candidate) (Verdict, error) {
	var verdict Verdict

	if c.Size > v.policy.MaxBytes {
		return verdict, TooLarge(v.policy.MaxBytes)
	}

	if !mediatypes.IsAllowedVideo(c.Name) {
		return verdict, failure.New(failure.KindValidation,
			"unsupported file type %q (allowed: %s)", mediatypes.Ext(c.Name), mediatypes.AllowedList())
	}

	if c.Path == "" || v.prober == nil {
		return verdict, nil
	}
	if _, err := os.Stat(c.Path); err != nil {
		log.Warn("duration check skipped for %s: %v", c.Name, err)
		metrics.DurationProbesTotal.WithLabelValues("skipped").Inc()
		return verdict, nil
	}

	seconds, err := v.prober.ProbeDuration(ctx, c.Path)
	if err != nil {
		log.Warn("duration check skipped for %s: %v", c.Name, err)
		metrics.DurationProbesTotal.WithLabelValues("skipped").Inc()
		return verdict, nil
	}

	verdict.Duration = seconds
	verdict.DurationChecked = true
	if seconds > v.policy.MaxDuration.Seconds() {
		metrics.DurationProbesTotal.WithLabelValues("rejected").Inc()
		return verdict, failure.New(failure.KindValidation,
			"video duration %.1fs cannot exceed %s", seconds, v.policy.MaxDuration)
	}

	metrics.DurationProbesTotal.WithLabelValues("ok").Inc()
	return verdict, nil
}

// TooLarge is the rejection for content larger than maxBytes. Upload
// adapters that stop reading at the limit report it directly.
func TooLarge(maxBytes int64) *failure.Error {
	return failure.New(failure.KindValidation, "video size cannot exceed %s", formatBytes(maxBytes))
}

// formatBytes renders whole MiB limits as "100MB", matching the upload form.
func formatBytes(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
