package tree

import (
	"fmt"
	"math"
	"strings"
)

// Node is an AVL tree node holding one position and one payload.
//
// A node owns its children; children carry no parent pointer. Mutators that
// reassign Left or Right must call Update before the node is rebalanced.
//
// The index and end-time fields are bookkeeping for the element trees. The
// plain AVL operations never read them; they are recomputed by a full walk
// after each batch of mutations (see updateIndices and updateEndTimes).
type Node[K, P any] struct {
	Position K
	Payload  P

	Left  *Node[K, P]
	Right *Node[K, P]

	// Height is 0 for a leaf; a missing child counts as -1.
	Height int
	// Balance is height(Right) - height(Left).
	Balance int

	// PayloadStart and PayloadStop are the global in-order index range
	// [start, stop) covered by this node's own payload. For a
	// single-element tree PayloadStart is the payload element index.
	PayloadStart int
	PayloadStop  int

	// SubtreeStart and SubtreeStop are the global index range covered by
	// this node and all of its descendants.
	SubtreeStart int
	SubtreeStop  int

	// EndTimeLow and EndTimeHigh bound every payload end time in the subtree.
	EndTimeLow  float64
	EndTimeHigh float64
}

func newNode[K, P any](position K, payload P) *Node[K, P] {
	return &Node[K, P]{
		Position:    position,
		Payload:     payload,
		EndTimeLow:  math.Inf(1),
		EndTimeHigh: math.Inf(-1),
	}
}

// Update recomputes Height and Balance from the immediate children.
func (n *Node[K, P]) Update() {
	leftHeight, rightHeight := -1, -1

	if n.Left != nil {
		leftHeight = n.Left.Height
	}

	if n.Right != nil {
		rightHeight = n.Right.Height
	}

	n.Height = max(leftHeight, rightHeight) + 1
	n.Balance = rightHeight - leftHeight
}

// RotateLeftLeft fixes a left-left imbalance with a single right rotation
// and returns the new subtree root.
func (n *Node[K, P]) RotateLeftLeft() *Node[K, P] {
	next := n.Left
	n.Left = next.Right
	n.Update()

	next.Right = n
	next.Update()

	return next
}

// RotateRightRight fixes a right-right imbalance with a single left rotation
// and returns the new subtree root.
func (n *Node[K, P]) RotateRightRight() *Node[K, P] {
	next := n.Right
	n.Right = next.Left
	n.Update()

	next.Left = n
	next.Update()

	return next
}

// RotateLeftRight fixes a left-right imbalance by rotating the left child
// first, then the node itself.
func (n *Node[K, P]) RotateLeftRight() *Node[K, P] {
	n.Left = n.Left.RotateRightRight()
	n.Update()

	return n.RotateLeftLeft()
}

// RotateRightLeft fixes a right-left imbalance by rotating the right child
// first, then the node itself.
func (n *Node[K, P]) RotateRightLeft() *Node[K, P] {
	n.Right = n.Right.RotateLeftLeft()
	n.Update()

	return n.RotateRightRight()
}

// Rebalance restores the AVL property at n and returns the subtree root.
// It panics with ErrBalanceInvariant if the result is still out of balance,
// which can only happen when the rotation logic or the callers' Update
// discipline is broken.
func (n *Node[K, P]) Rebalance() *Node[K, P] {
	node := n

	switch {
	case node.Balance > 1:
		if node.Right.Balance >= 0 {
			node = node.RotateRightRight()
		} else {
			node = node.RotateRightLeft()
		}
	case node.Balance < -1:
		if node.Left.Balance <= 0 {
			node = node.RotateLeftLeft()
		} else {
			node = node.RotateLeftRight()
		}
	}

	if node.Balance < -1 || node.Balance > 1 {
		panic(fmt.Errorf("%w: node %v has balance %d after rebalancing",
			ErrBalanceInvariant, node.Position, node.Balance))
	}

	return node
}

// moveAttributes copies the position and payload of donor into n. Heights,
// indices and end times are left for the caller's update passes.
func (n *Node[K, P]) moveAttributes(donor *Node[K, P]) {
	n.Position = donor.Position
	n.Payload = donor.Payload
}

// String returns a one-line summary such as "<Node: Start:1 Height:1 L:0 R:None>".
func (n *Node[K, P]) String() string {
	return fmt.Sprintf("<Node: Start:%v Height:%d L:%s R:%s>",
		n.Position, n.Height, childHeight(n.Left), childHeight(n.Right))
}

// Debug renders the subtree rooted at n, one node per line, children
// indented by one tab per level.
func (n *Node[K, P]) Debug() string {
	return strings.Join(n.debugPieces(), "\n")
}

func (n *Node[K, P]) debugPieces() []string {
	pieces := []string{n.String()}

	appendChild := func(label string, child *Node[K, P]) {
		if child == nil {
			return
		}

		sub := child.debugPieces()
		pieces = append(pieces, "\t"+label+": "+sub[0])

		for _, line := range sub[1:] {
			pieces = append(pieces, "\t"+line)
		}
	}

	appendChild("L", n.Left)
	appendChild("R", n.Right)

	return pieces
}

func childHeight[K, P any](n *Node[K, P]) string {
	if n == nil {
		return "None"
	}

	return fmt.Sprint(n.Height)
}

// updateIndices recomputes the payload and subtree index ranges of the
// subtree rooted at n, whose first element has global index start. It
// returns the subtree stop index.
func updateIndices[K, E any](n *Node[K, []E], start int) int {
	if n.Left != nil {
		updateIndices(n.Left, start)
		n.PayloadStart = n.Left.SubtreeStop
		n.SubtreeStart = n.Left.SubtreeStart
	} else {
		n.PayloadStart = start
		n.SubtreeStart = start
	}

	n.PayloadStop = n.PayloadStart + len(n.Payload)

	if n.Right != nil {
		n.SubtreeStop = updateIndices(n.Right, n.PayloadStop)
	} else {
		n.SubtreeStop = n.PayloadStop
	}

	return n.SubtreeStop
}

// updateEndTimes recomputes EndTimeLow and EndTimeHigh over the subtree
// rooted at n, children first.
func updateEndTimes[K, E any](n *Node[K, []E], endTimeOf func(E) float64) {
	if n.Left != nil {
		updateEndTimes(n.Left, endTimeOf)
	}

	if n.Right != nil {
		updateEndTimes(n.Right, endTimeOf)
	}

	recalcEndTimes(n, endTimeOf)
}

// recalcEndTimes recomputes the end-time bounds of n from its own payload
// and its children's already-correct bounds.
func recalcEndTimes[K, E any](n *Node[K, []E], endTimeOf func(E) float64) {
	low, high := math.Inf(1), math.Inf(-1)

	for _, el := range n.Payload {
		end := endTimeOf(el)
		low = min(low, end)
		high = max(high, end)
	}

	for _, child := range [2]*Node[K, []E]{n.Left, n.Right} {
		if child == nil {
			continue
		}

		low = min(low, child.EndTimeLow)
		high = max(high, child.EndTimeHigh)
	}

	n.EndTimeLow = low
	n.EndTimeHigh = high
}

// recalcSubtreeRange recomputes the subtree index range of n from its own
// payload range and its children's ranges.
func recalcSubtreeRange[K, E any](n *Node[K, []E]) {
	n.PayloadStop = n.PayloadStart + len(n.Payload)

	n.SubtreeStart = n.PayloadStart
	if n.Left != nil {
		n.SubtreeStart = n.Left.SubtreeStart
	}

	n.SubtreeStop = n.PayloadStop
	if n.Right != nil {
		n.SubtreeStop = n.Right.SubtreeStop
	}
}
