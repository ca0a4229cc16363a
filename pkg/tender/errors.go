package tender

import "errors"

var (
	// ErrValidation indicates malformed or missing caller input.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates an unknown tender or stage number.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates a transition precondition was not met
	// given the tender's current derived state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized indicates the wrong actor attempted a privileged
	// transition, e.g. a non-winner submitting work.
	ErrUnauthorized = errors.New("unauthorized")
)
