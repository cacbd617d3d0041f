package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/workbook"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid extraction request")
	// ErrNoUsableDocuments is returned when every uploaded file was excluded
	// during extraction.
	ErrNoUsableDocuments = errors.New("no valid PDF content could be extracted from any file")
	// ErrTimeout is returned when a batch exceeds its processing deadline.
	ErrTimeout = errors.New("extraction timed out")
	// ErrOutputNotFound is returned for unknown, failed or expired jobs.
	ErrOutputNotFound = errors.New("output not found")
)

// ValidationError rejects a request before any extraction work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError reports a failure to write the workbook or job record.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Machine-readable error codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNoUsableDocuments  = "NO_USABLE_DOCUMENTS"
	CodeTimeout            = "TIMEOUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeStructuringTimeout = "STRUCTURING_TIMEOUT"
	CodeStructuringFailed  = "STRUCTURING_FAILED"
	CodeCanceled           = "CANCELED"
	CodePersistence        = "PERSISTENCE_ERROR"
	CodeOutputNotFound     = "OUTPUT_NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// Code classifies err for callers that cannot inspect Go error values.
func Code(err error) string {
	var fe *structuring.FailedError
	var pe *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrNoUsableDocuments):
		return CodeNoUsableDocuments
	case errors.Is(err, ErrOutputNotFound):
		return CodeOutputNotFound
	case errors.As(err, &pe), errors.Is(err, workbook.ErrSaveFailed):
		return CodePersistence
	case errors.As(err, &fe):
		switch fe.Cause {
		case structuring.CauseRateLimited:
			return CodeRateLimited
		case structuring.CauseTimeout:
			return CodeStructuringTimeout
		case structuring.CauseNoInput:
			return CodeNoUsableDocuments
		case structuring.CauseCanceled:
			return CodeCanceled
		}
		return CodeStructuringFailed
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeInternal
}
