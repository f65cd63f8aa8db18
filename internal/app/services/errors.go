package services

import (
	"errors"
	"fmt"
)

// ErrValidation is returned for malformed or missing input, before any
// persistence or remote call happens.
var ErrValidation = errors.New("validation failed")

// ErrConflict is returned when a transition is not allowed from the current
// state, e.g. cancelling a completed order.
var ErrConflict = errors.New("conflict")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
