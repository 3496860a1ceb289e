// Package failure defines the typed errors that end a pipeline run.
//
// Every error that rejects an asset is an *Error carrying a Kind. Callers
// match on kind with errors.Is against the exported sentinels:
//
//	if errors.Is(err, failure.ErrTimeout) { ... }
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why a pipeline run failed.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindToolUnavailable  Kind = "tool_unavailable"
	KindTranscode        Kind = "transcode_failure"
	KindTimeout          Kind = "transcode_timeout"
	KindPublish          Kind = "publish_failure"
	KindAlreadyProcessed Kind = "already_processed"
	KindStore            Kind = "store"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrToolUnavailable  = &Error{Kind: KindToolUnavailable}
	ErrTranscode        = &Error{Kind: KindTranscode}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrPublish          = &Error{Kind: KindPublish}
	ErrAlreadyProcessed = &Error{Kind: KindAlreadyProcessed}
	ErrStore            = &Error{Kind: KindStore}
)

// maxDiagnostics bounds the diagnostic text kept on an error.
const maxDiagnostics = 4096

// Error is a terminal pipeline failure.
type Error struct {
	Kind   Kind
	Reason string
	// Diagnostics holds captured tool output. Informational only.
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// WithDiagnostics attaches captured tool output, keeping only the tail.
func (e *Error) WithDiagnostics(text string) *Error {
	if len(text) > maxDiagnostics {
		text = "..." + text[len(text)-maxDiagnostics:]
	}
	e.Diagnostics = text
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// ReasonOf returns a short human readable reason for err.
func ReasonOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Reason != "" {
			return fe.Reason
		}
		return string(fe.Kind)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
