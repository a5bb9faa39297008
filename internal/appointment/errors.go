package appointment

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of them
// with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDependency        = errors.New("dependency unavailable")
)

var (
	ErrUserNotFound         = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrProfessionalNotFound = fmt.Errorf("%w: professional not found", ErrNotFound)
	ErrClientNotFound       = fmt.Errorf("%w: client not found", ErrNotFound)
	ErrAppointmentNotFound  = fmt.Errorf("%w: appointment not found", ErrNotFound)
	// ErrNotRateable covers absent, foreign and not yet completed appointments alike.
	ErrNotRateable = fmt.Errorf("%w: appointment not found or not completed", ErrNotFound)

	ErrSlotTaken      = fmt.Errorf("%w: slot already booked for this professional", ErrConflict)
	ErrFeedbackExists = fmt.Errorf("%w: feedback already submitted for this appointment", ErrConflict)
	ErrEmailTaken     = fmt.Errorf("%w: email already registered", ErrConflict)

	ErrStaleStatus = fmt.Errorf("%w: appointment status changed concurrently", ErrInvalidTransition)

	ErrSequenceConsumed = fmt.Errorf("%w: appointment sequence already consumed", ErrValidation)
)

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrInvalidTransition, ErrDependency}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDependency)
}

// classify passes domain errors through and marks everything else,
// timeouts included, as a dependency failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out: %w", ErrDependency, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrDependency, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
