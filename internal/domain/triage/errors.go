package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCase is returned when a case has no symptoms, vitals or
	// history to score.
	ErrInvalidCase = errors.New("case has no symptoms, vitals or history to score")

	// ErrNotFound is returned for operations on an unknown case id.
	ErrNotFound = errors.New("triage case not found")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status move the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move case from %q to %q", e.From, e.To)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidTransition reports whether err is or wraps an *InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
