package models

import "errors"

var (
	// ErrInvalidInput marks caller mistakes (empty name/phone and the like).
	// Mapped to 400 at the HTTP boundary, never retried.
	ErrInvalidInput = errors.New("queue: invalid input")

	// ErrNotFound marks a missing entry where the operation contract treats
	// absence as an error rather than a soft miss.
	ErrNotFound = errors.New("queue: entry not found")

	// ErrInvalidTransition marks a state change that violates the monotonic
	// waiting -> called -> served order, e.g. serving an entry twice.
	ErrInvalidTransition = errors.New("queue: invalid status transition")
)
