package structuring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/pe-report-extractor/internal/template"
)

var (
	// ErrStructuringFailed is matched by every *FailedError.
	ErrStructuringFailed = errors.New("structuring failed")
	// ErrInvalidRecord marks a parsed response that failed validation.
	ErrInvalidRecord = errors.New("invalid structured record")
	// ErrNoInput is returned when there is no document text to structure.
	ErrNoInput = errors.New("no document text to structure")
	// ErrNoModels is returned by an engine configured without candidates.
	ErrNoModels = errors.New("no candidate models configured")
)

// Cause classifies why structuring gave up.
type Cause string

const (
	CauseRateLimited Cause = "rate_limited"
	CauseTimeout     Cause = "timeout"
	CauseHard        Cause = "hard"
	CauseNoInput     Cause = "no_input"
	// CauseCanceled means the caller went away before a result was ready.
	CauseCanceled Cause = "canceled"
)

// FailedError is returned after every model and retry round is exhausted.
type FailedError struct {
	TemplateID template.ID
	Attempts   int
	Models     []string
	Cause      Cause
	LastErr    error

	// aborted is set when the run stopped because its context ended.
	aborted bool
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("structuring failed for template %s after %d attempts", e.TemplateID, e.Attempts)
	if len(e.Models) > 0 {
		msg += " (models: " + strings.Join(e.Models, ", ") + ")"
	}
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *FailedError) Unwrap() error { return e.LastErr }

func (e *FailedError) Is(target error) bool { return target == ErrStructuringFailed }

// Retryable reports whether resubmitting later could succeed.
func (e *FailedError) Retryable() bool {
	return e.Cause == CauseRateLimited || e.Cause == CauseTimeout || e.Cause == CauseCanceled
}
