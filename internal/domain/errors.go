package domain

import "errors"

var (
	// ErrValidation marks a malformed placement payload: empty items,
	// non-positive quantity, unresolvable price.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks a status change that is not reachable
	// from the order's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound marks an unknown order id.
	ErrNotFound = errors.New("order not found")

	// ErrPersistence marks a failed snapshot write. It is returned as a
	// warning next to the committed in-memory state, never as a rollback:
	// the broadcast already reflects the mutation.
	ErrPersistence = errors.New("snapshot write failed")
)
