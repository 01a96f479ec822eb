package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by DocumentService matches exactly one of them
// with errors.Is, so callers can tell a plain miss from a state that needs reconciliation.
var (
	// ErrValidation: the upload was rejected before anything was stored.
	ErrValidation = errors.New("validation rejected")
	// ErrNotFound: no record exists for the ID.
	ErrNotFound = errors.New("document not found")
	// ErrStorage: reading, writing or deleting a blob failed. Stores are still consistent.
	ErrStorage = errors.New("storage failure")
	// ErrMetadata: the metadata store failed.
	ErrMetadata = errors.New("metadata failure")
	// ErrInconsistent: a record exists but its blob is missing or has the wrong size.
	ErrInconsistent = errors.New("storage inconsistency")
	// ErrPartialFailure: the blob was deleted but the record could not be.
	ErrPartialFailure = errors.New("partial failure")
)

var (
	// ErrOrphanedBlob additionally marks an ErrMetadata upload failure whose blob
	// could not be rolled back.
	ErrOrphanedBlob = errors.New("orphaned blob")
	ErrReaderNil    = errors.New("reader is nil")
	ErrNameRequired = errors.New("file name is required")
	ErrInvalidID    = errors.New("id must be positive")
)

// Error describes a failed document operation.
type Error struct {
	Op   string
	ID   int64 // zero when no record is involved yet
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s document %d: %v: %v", e.Op, e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s document: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func opError(op string, id int64, kind, err error) *Error {
	return &Error{Op: op, ID: id, Kind: kind, Err: err}
}

// result maps an error to the label used for metrics and span status.
func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInconsistent):
		return "inconsistent"
	case errors.Is(err, ErrPartialFailure):
		return "partial_failure"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrMetadata):
		return "metadata_error"
	default:
		return "error"
	}
}
