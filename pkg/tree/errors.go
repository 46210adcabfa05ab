package tree

import "errors"

// Sentinel errors.
var (
	// ErrBalanceInvariant is the panic value (wrapped) raised when a node is
	// still unbalanced after Rebalance. It signals a defect, not bad input.
	ErrBalanceInvariant = errors.New("avl balance invariant violated")

	ErrLengthMismatch   = errors.New("positions and payloads differ in length")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrElementNotFound  = errors.New("element not found in tree")
	ErrMissingPosition  = errors.New("a position function is required")
	ErrUnsortedPosition = errors.New("positions are not in ascending order")
)
