package tree

import (
	"cmp"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// note is a test payload with an offset and a duration.
type note struct {
	name     string
	offset   float64
	duration float64
}

func (n *note) endTime() float64 {
	return n.offset + n.duration
}

func noteOffset(n *note) float64 { return n.offset }

func noteDuration(n *note) float64 { return n.duration }

func compareNotes(a, b *note) int {
	return cmp.Compare(a.name, b.name)
}

func newNoteTree(t *testing.T) *OffsetTree[*note] {
	t.Helper()

	tree, err := NewOffsetTree(OffsetConfig[*note]{
		OffsetOf:  noteOffset,
		EndTimeOf: EndTimeFromDuration(noteOffset, noteDuration),
		Compare:   compareNotes,
	})
	require.NoError(t, err)

	return tree
}

// requireAVL checks heights, balance factors and ordering of the subtree
// rooted at n and returns its height.
func requireAVL[K, P any](t *testing.T, n *Node[K, P], compare func(a, b K) int) int {
	t.Helper()

	if n == nil {
		return -1
	}

	leftHeight := requireAVL(t, n.Left, compare)
	rightHeight := requireAVL(t, n.Right, compare)

	require.Equal(t, max(leftHeight, rightHeight)+1, n.Height, "height of %v", n.Position)
	require.Equal(t, rightHeight-leftHeight, n.Balance, "balance of %v", n.Position)
	require.LessOrEqual(t, n.Balance, 1)
	require.GreaterOrEqual(t, n.Balance, -1)

	if n.Left != nil {
		require.Negative(t, compare(n.Left.Position, n.Position))
	}

	if n.Right != nil {
		require.Positive(t, compare(n.Right.Position, n.Position))
	}

	return n.Height
}

// requireBookkeeping checks subtree index widths and end-time bounds and
// returns the element count and end-time range of the subtree.
func requireBookkeeping[K any, E comparable](
	t *testing.T, n *Node[K, []E], endTimeOf func(E) float64,
) (count int, low, high float64) {
	t.Helper()

	if n == nil {
		return 0, math.Inf(1), math.Inf(-1)
	}

	leftCount, leftLow, leftHigh := requireBookkeeping(t, n.Left, endTimeOf)
	rightCount, rightLow, rightHigh := requireBookkeeping(t, n.Right, endTimeOf)

	count = leftCount + rightCount + len(n.Payload)
	low, high = min(leftLow, rightLow), max(leftHigh, rightHigh)

	for _, el := range n.Payload {
		end := endTimeOf(el)
		low, high = min(low, end), max(high, end)
	}

	require.Equal(t, count, n.SubtreeStop-n.SubtreeStart, "subtree width at %v", n.Position)
	require.Equal(t, len(n.Payload), n.PayloadStop-n.PayloadStart, "payload width at %v", n.Position)
	require.LessOrEqual(t, n.EndTimeLow, low, "end time low at %v", n.Position)
	require.GreaterOrEqual(t, n.EndTimeHigh, high, "end time high at %v", n.Position)

	return count, low, high
}

// requireInvariants checks every structural invariant of an indexed tree.
func requireInvariants[K any, E comparable](t *testing.T, tree *indexed[K, E]) {
	t.Helper()

	requireAVL(t, tree.avl.root, tree.avl.compare)
	requireBookkeeping(t, tree.avl.root, tree.endTimeOf)

	all := tree.All()
	require.Len(t, all, tree.Len())

	for i, want := range all {
		got, err := tree.At(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "element %d", i)
	}
}
