package tree

import "errors"

var (
	// ErrImpossibleMove is returned when a move is structurally invalid: the node is
	// unsaved, the target is the node itself or one of its descendants, the target
	// lives in another scope, or the position is not one of the known positions.
	ErrImpossibleMove = errors.New("nestedset: impossible move")

	// ErrInconsistentMove is returned when relocation hints contradict each other.
	ErrInconsistentMove = errors.New("nestedset: inconsistent move")

	// ErrNotFound is returned when a node doesn't exist.
	ErrNotFound = errors.New("nestedset: node not found")

	// ErrAlreadyExists is returned when inserting a node with an existing ID.
	ErrAlreadyExists = errors.New("nestedset: node already exists")

	// ErrCorrupt is returned by Check when a partition violates the interval invariant.
	ErrCorrupt = errors.New("nestedset: interval invariant violated")

	// ErrInvalidID is returned when a value cannot be interpreted as a node ID.
	ErrInvalidID = errors.New("nestedset: invalid node id")
)
