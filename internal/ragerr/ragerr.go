// Package ragerr defines the typed errors shared across the ingestion and
// retrieval pipeline. Callers branch on Kind via errors.As or the Is helper.
package ragerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	InvalidDocument    Kind = "invalid_document"
	ExtractionFailure  Kind = "extraction_failure"
	EncoderNotReady    Kind = "encoder_not_ready"
	UpsertFailure      Kind = "upsert_failure"
	AlreadyInProgress  Kind = "already_in_progress"
	BackendUnavailable Kind = "backend_unavailable"
	GenerationFailure  Kind = "generation_failure"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err, or "" when err is untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
