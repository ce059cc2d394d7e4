// Package wikierr defines the error kinds used across the wiki generation
// pipeline. Every error that crosses a package boundary carries a Kind so the
// orchestrator and CLI can decide between retrying, failing the document, or
// surfacing the error to the caller.
package wikierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for recovery policy.
type Kind int

const (
	// KindConfig indicates missing or invalid configuration (LLM keys,
	// vector store, template paths). Never retried.
	KindConfig Kind = iota

	// KindNotFound indicates a repository, document, or catalog lookup miss.
	KindNotFound

	// KindConflict indicates a duplicate registration.
	KindConflict

	// KindValidation indicates bad caller input (URL, path, classification).
	KindValidation

	// KindIO indicates a filesystem failure. Retried once by the orchestrator.
	KindIO

	// KindTransient indicates a rate limit, 5xx, or timeout from a remote
	// service. The adapters retry these before they ever reach a stage.
	KindTransient

	// KindParse indicates the LLM response lacked the expected structure and
	// every fallback produced no usable value. Never aborts the pipeline.
	KindParse

	// KindCanceled indicates user-initiated cancellation.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindTransient:
		return "transient"
	case KindParse:
		return "parse"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a kinded error wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or ok=false when err carries no kind.
func KindOf(err error) (Kind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRetryable reports whether the orchestrator may retry a stage that
// failed with err. IO errors get one retry; transient remote errors get the
// stage-level retry budget.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == KindIO || k == KindTransient
}
