// Package tree provides an AVL tree for time-ordered payloads together with
// two indexed flavors built on it: ElementTree, holding exactly one element
// per position, and OffsetTree, holding a list of elements per offset.
//
// Every node of the indexed flavors also records the global index range and
// the end-time bounds of its subtree. That makes integer indexing O(log n)
// and lets interval queries ("what stops here", "what is still sounding
// here") skip subtrees that cannot contain a match.
//
// Trees are not safe for concurrent use.
package tree

import (
	"iter"
)

// Pair is a position with the payload to store there.
type Pair[K, P any] struct {
	Position K
	Payload  P
}

// AVLTree is a self-balancing binary search tree ordered by a comparison
// function over positions. It is payload-agnostic.
type AVLTree[K, P any] struct {
	root    *Node[K, P]
	compare func(a, b K) int
}

// NewAVLTree creates an empty tree ordered by compare.
func NewAVLTree[K, P any](compare func(a, b K) int) *AVLTree[K, P] {
	return &AVLTree[K, P]{compare: compare}
}

// Root returns the root node, or nil for an empty tree.
func (t *AVLTree[K, P]) Root() *Node[K, P] {
	return t.root
}

// Height returns the height of the root, or -1 for an empty tree.
func (t *AVLTree[K, P]) Height() int {
	if t.root == nil {
		return -1
	}

	return t.root.Height
}

// CreateNodeAtPosition returns the node at position, creating it (and
// rebalancing on the way back up) if it does not exist yet.
func (t *AVLTree[K, P]) CreateNodeAtPosition(position K) *Node[K, P] {
	var target *Node[K, P]

	var recurse func(n *Node[K, P]) *Node[K, P]

	recurse = func(n *Node[K, P]) *Node[K, P] {
		if n == nil {
			var zero P

			target = newNode(position, zero)

			return target
		}

		switch c := t.compare(position, n.Position); {
		case c < 0:
			n.Left = recurse(n.Left)
			n.Update()
		case c > 0:
			n.Right = recurse(n.Right)
			n.Update()
		default:
			target = n
		}

		return n.Rebalance()
	}

	t.root = recurse(t.root)

	return target
}

// RemoveNode deletes the node at position. Removing an absent position is a
// no-op. A node with two children takes over the position and payload of
// its in-order successor, which is then deleted from the right subtree.
func (t *AVLTree[K, P]) RemoveNode(position K) {
	t.root = t.removeNode(t.root, position)
}

func (t *AVLTree[K, P]) removeNode(n *Node[K, P], position K) *Node[K, P] {
	if n == nil {
		return nil
	}

	switch c := t.compare(position, n.Position); {
	case c < 0:
		n.Left = t.removeNode(n.Left, position)
		n.Update()
	case c > 0:
		n.Right = t.removeNode(n.Right, position)
		n.Update()
	default:
		if n.Left == nil || n.Right == nil {
			if n.Left != nil {
				return n.Left
			}

			return n.Right
		}

		successor := n.Right
		for successor.Left != nil {
			successor = successor.Left
		}

		n.moveAttributes(successor)
		n.Right = t.removeNode(n.Right, successor.Position)
		n.Update()
	}

	return n.Rebalance()
}

// GetNodeByPosition returns the node at exactly position, or nil.
func (t *AVLTree[K, P]) GetNodeByPosition(position K) *Node[K, P] {
	n := t.root

	for n != nil {
		switch c := t.compare(position, n.Position); {
		case c < 0:
			n = n.Left
		case c > 0:
			n = n.Right
		default:
			return n
		}
	}

	return nil
}

// GetNodeAfter returns the node with the smallest position strictly greater
// than position, or nil. position need not be present in the tree.
func (t *AVLTree[K, P]) GetNodeAfter(position K) *Node[K, P] {
	var best *Node[K, P]

	for n := t.root; n != nil; {
		if t.compare(position, n.Position) < 0 {
			best = n
			n = n.Left
		} else {
			n = n.Right
		}
	}

	return best
}

// GetNodeBefore returns the node with the largest position strictly less
// than position, or nil.
func (t *AVLTree[K, P]) GetNodeBefore(position K) *Node[K, P] {
	var best *Node[K, P]

	for n := t.root; n != nil; {
		if t.compare(n.Position, position) < 0 {
			best = n
			n = n.Right
		} else {
			n = n.Left
		}
	}

	return best
}

// GetPositionAfter returns the smallest position strictly greater than
// position. The boolean is false when there is none.
func (t *AVLTree[K, P]) GetPositionAfter(position K) (K, bool) {
	return positionOf(t.GetNodeAfter(position))
}

// GetPositionBefore returns the largest position strictly less than position.
func (t *AVLTree[K, P]) GetPositionBefore(position K) (K, bool) {
	return positionOf(t.GetNodeBefore(position))
}

// LowestPosition returns the smallest position in the tree.
func (t *AVLTree[K, P]) LowestPosition() (K, bool) {
	n := t.root
	for n != nil && n.Left != nil {
		n = n.Left
	}

	return positionOf(n)
}

// HighestPosition returns the largest position in the tree.
func (t *AVLTree[K, P]) HighestPosition() (K, bool) {
	n := t.root
	for n != nil && n.Right != nil {
		n = n.Right
	}

	return positionOf(n)
}

// PopulateFromSortedList replaces the contents of the tree with pairs,
// which must be strictly increasing by position. The tree is built in O(n)
// by making the midpoint of every sublist its subtree root. Unsorted or
// duplicate positions are not detected and yield an invalid tree.
func (t *AVLTree[K, P]) PopulateFromSortedList(pairs []Pair[K, P]) {
	var build func(list []Pair[K, P]) *Node[K, P]

	build = func(list []Pair[K, P]) *Node[K, P] {
		if len(list) == 0 {
			return nil
		}

		mid := len(list) / 2
		n := newNode(list[mid].Position, list[mid].Payload)
		n.Left = build(list[:mid])
		n.Right = build(list[mid+1:])
		n.Update()

		return n
	}

	t.root = build(pairs)
}

// Nodes yields every node in position order.
func (t *AVLTree[K, P]) Nodes() iter.Seq[*Node[K, P]] {
	return func(yield func(*Node[K, P]) bool) {
		walkInOrder(t.root, yield)
	}
}

// Positions returns every position in ascending order.
func (t *AVLTree[K, P]) Positions() []K {
	var positions []K

	for n := range t.Nodes() {
		positions = append(positions, n.Position)
	}

	return positions
}

// Debug renders the whole tree; an empty tree renders as "<empty>".
func (t *AVLTree[K, P]) Debug() string {
	if t.root == nil {
		return "<empty>"
	}

	return t.root.Debug()
}

func walkInOrder[K, P any](n *Node[K, P], yield func(*Node[K, P]) bool) bool {
	if n == nil {
		return true
	}

	return walkInOrder(n.Left, yield) && yield(n) && walkInOrder(n.Right, yield)
}

func positionOf[K, P any](n *Node[K, P]) (K, bool) {
	if n == nil {
		var zero K

		return zero, false
	}

	return n.Position, true
}
