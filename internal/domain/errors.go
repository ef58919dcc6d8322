package domain

import "errors"

// Sentinel errors shared across services and handlers. Wrap with %w and match
// with errors.Is.
var (
	// ErrValidation marks bad caller input; no state was changed.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected by the entity's current state.
	ErrConflict = errors.New("conflict")

	// ErrInvariant marks a broken internal invariant, e.g. a dispatch request
	// for a protested obligation. Callers must short-circuit before side effects.
	ErrInvariant = errors.New("invariant violation")

	// ErrContentGeneration marks a failed or empty AI content response for a
	// tenant that requires AI-authored messages. Never silently degraded.
	ErrContentGeneration = errors.New("content generation failed")

	// ErrRetryExhausted marks a slot occurrence whose attempt budget is spent.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
