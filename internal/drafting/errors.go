package drafting

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionNotMet means generation was requested without a patient name.
	// Callers block the action instead of surfacing it as a failure.
	ErrPreconditionNotMet = errors.New("patient name is required to generate a draft")
	ErrInvalidGender      = errors.New("invalid gender")
	ErrUnknownField       = errors.New("unknown draft field")
	ErrNoDraft            = errors.New("no draft has been generated")
	ErrEmptyCompletion    = errors.New("generator returned no text")
)

// UpstreamError is returned once the text generator has failed every attempt.
type UpstreamError struct {
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("draft generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
