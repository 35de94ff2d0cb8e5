// Package apperr defines the core's error taxonomy (§7 of the upload
// processing design). Every component boundary returns one of these kinds
// instead of propagating ad-hoc errors, so callers (HTTP adapter, CLI,
// scheduler) can make a single dispositional decision without inspecting
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a core error.
type Kind string

const (
	// KindNotFound: requested upload/entry/path does not exist.
	KindNotFound Kind = "not_found"
	// KindUnauthorized: caller lacks the rights required for the operation.
	KindUnauthorized Kind = "unauthorized"
	// KindBadRequest: invalid path, embargo value, or metadata field.
	KindBadRequest Kind = "bad_request"
	// KindProcessAlreadyRunning: CAS on process_status failed.
	KindProcessAlreadyRunning Kind = "process_already_running"
	// KindParserFailure: the selected parser threw or exited abnormally.
	KindParserFailure Kind = "parser_failure"
	// KindNormalizerFailure: a normalizer raised against the archive.
	KindNormalizerFailure Kind = "normalizer_failure"
	// KindArchiveWriteFailure: the archive record could not be fully written.
	KindArchiveWriteFailure Kind = "archive_write_failure"
	// KindPackFailure: packing staging into the public area failed partway.
	KindPackFailure Kind = "pack_failure"
	// KindBundleImportFailure: bundle import sanity checks failed.
	KindBundleImportFailure Kind = "bundle_import_failure"
	// KindSearchIndexFailure: the search gateway call failed; never fatal.
	KindSearchIndexFailure Kind = "search_index_failure"
)

// Error is the concrete error type carrying a Kind plus one level of
// causation (§7: "the core does not wrap them in chains beyond one-level
// causation").
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error with a one-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Unauthorizedf builds a KindUnauthorized error.
func Unauthorizedf(format string, args ...any) *Error {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

// BadRequestf builds a KindBadRequest error.
func BadRequestf(format string, args ...any) *Error {
	return New(KindBadRequest, fmt.Sprintf(format, args...))
}

// ErrProcessAlreadyRunning is a sentinel returned by state-store CAS
// operations when a second operation attempt races the first (I3).
var ErrProcessAlreadyRunning = New(KindProcessAlreadyRunning, "a process is already running for this upload")
