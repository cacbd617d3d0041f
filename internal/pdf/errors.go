package pdf

import (
	"errors"
	"fmt"
)

var (
	// ErrOpen is matched by every *OpenError.
	ErrOpen = errors.New("pdf could not be opened")
	// ErrEmpty is matched by every *EmptyError.
	ErrEmpty = errors.New("pdf has no pages")
	// ErrInspect is returned when structural inspection fails.
	ErrInspect = errors.New("pdf inspection failed")
)

// OpenError reports a document that is corrupt, encrypted or otherwise
// unreadable.
type OpenError struct {
	Source    string
	Encrypted bool
	Err       error
}

func (e *OpenError) Error() string {
	if e.Encrypted {
		return fmt.Sprintf("pdf %q is encrypted", e.Source)
	}
	return fmt.Sprintf("pdf %q could not be opened: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// EmptyError reports a document that opened but has zero pages.
type EmptyError struct {
	Source string
}

func (e *EmptyError) Error() string {
	return fmt.Sprintf("pdf %q has no pages", e.Source)
}

func (e *EmptyError) Is(target error) bool { return target == ErrEmpty }
