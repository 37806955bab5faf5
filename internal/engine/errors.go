package engine

import "errors"

// Sentinel errors for the scheduling engine. Callers match them with
// errors.Is; infrastructure paths wrap them with context.
var (
	// ErrNotFound is returned when a scheduled transaction id is unknown.
	ErrNotFound = errors.New("scheduled transaction not found")

	// ErrSkippedDate is returned when processing targets an explicitly
	// skipped occurrence date.
	ErrSkippedDate = errors.New("occurrence date is skipped")

	// ErrExhaustedRule is returned when processing is attempted but the
	// recurrence rule yields no further occurrence.
	ErrExhaustedRule = errors.New("recurrence rule has no further occurrences")

	// ErrValidation is returned for malformed rules or dangling references.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is returned when the underlying store is unavailable.
	ErrPersistence = errors.New("persistence failure")

	// ErrInactive is returned when processing a paused schedule.
	ErrInactive = errors.New("scheduled transaction is paused")
)
