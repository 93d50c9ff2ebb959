// Package modelerr defines the error kinds callers of the core dispatch
// on, per the error handling design: each kind carries a human-readable
// message and wraps its underlying cause.
package modelerr

import (
	"errors"
	"fmt"
)

// Kind classifies a core error so callers can dispatch without string
// matching on the message.
type Kind int

const (
	// Config marks invalid plan inputs: an unknown restatement target, a
	// parent that fails to resolve, or similar.
	Config Kind = iota
	// Conflict marks a push of a pre-existing snapshot_id, or a promote
	// whose no_gaps invariant was violated.
	Conflict
	// Execution marks a backfill batch failure, wrapping the adapter
	// error and tagged with the snapshot/interval it happened on.
	Execution
	// State marks a state-store inconsistency or schema-version
	// mismatch.
	State
	// Cancelled marks cooperative cancellation of a run.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case Conflict:
		return "ConflictError"
	case Execution:
		return "ExecutionError"
	case State:
		return "StateError"
	case Cancelled:
		return "CancelledError"
	default:
		return "UnknownError"
	}
}

// Error is the single error type returned by the core; Kind lets a caller
// dispatch, Unwrap exposes the wrapped cause for errors.Is/As.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

// ConfigError builds a Config-kind error.
func ConfigError(format string, args ...any) *Error { return new_(Config, format, args...) }

// ConflictError builds a Conflict-kind error.
func ConflictError(format string, args ...any) *Error { return new_(Conflict, format, args...) }

// ExecutionError builds an Execution-kind error wrapping the adapter
// failure, tagged with the offending snapshot and interval.
func ExecutionError(cause error, snapshotID string, start, end int64) *Error {
	return wrap(Execution, cause, "snapshot %s interval [%d, %d)", snapshotID, start, end)
}

// StateError builds a State-kind error.
func StateError(format string, args ...any) *Error { return new_(State, format, args...) }

// StateErrorWrap builds a State-kind error wrapping a cause.
func StateErrorWrap(cause error, format string, args ...any) *Error {
	return wrap(State, cause, format, args...)
}

// CancelledError builds a Cancelled-kind error.
func CancelledError(format string, args ...any) *Error { return new_(Cancelled, format, args...) }

// Is reports whether err is a modelerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
