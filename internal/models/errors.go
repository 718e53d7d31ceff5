package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for a participant key.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed is returned when a transition is not allowed from the current state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrSerialization is returned when a metadata blob cannot be parsed or produced.
	ErrSerialization = errors.New("serialization error")

	ErrAlreadyCheckedIn = fmt.Errorf("already checked in: %w", ErrPreconditionFailed)
	ErrNotCheckedIn     = fmt.Errorf("not checked in: %w", ErrPreconditionFailed)
)
