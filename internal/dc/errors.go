package dc

import "errors"

// Error kinds surfaced by the lifecycle. Handlers map these onto HTTP
// problem responses; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrInvalidTransition covers both an illegal (from, to) pair and an
	// edge whose precondition is unmet. Recoverable: the caller re-fetches
	// and retries with a corrected payload.
	ErrInvalidTransition = errors.New("dc: invalid status transition")

	// ErrUnauthorizedActor means the actor's role is not on the edge's
	// allow list. Never retried automatically.
	ErrUnauthorizedActor = errors.New("dc: actor not permitted for transition")

	// ErrInconsistentQuantity flags a negative remaining quantity or a
	// deliverable exceeding availability. Flagged for human review, never
	// auto-corrected.
	ErrInconsistentQuantity = errors.New("dc: inconsistent line quantities")

	// ErrMissingReference means a required employee or lead reference is
	// absent on a pipeline-entry edge.
	ErrMissingReference = errors.New("dc: missing required reference")

	// ErrNotFound is returned when the challan does not exist.
	ErrNotFound = errors.New("dc: challan not found")

	// ErrStaleChallan is returned when the compare-and-swap update loses to
	// a concurrent transition on the same challan.
	ErrStaleChallan = errors.New("dc: challan modified concurrently")
)
