package tree

import (
	"cmp"
	"fmt"
	"log/slog"
)

// OffsetConfig configures an OffsetTree.
type OffsetConfig[E comparable] struct {
	// OffsetOf returns the start offset of an element. Required.
	OffsetOf func(E) float64
	// EndTimeOf returns an element's end time; see EndTimeFromDuration.
	// When nil, elements end where they start.
	EndTimeOf func(E) float64
	// Compare orders the elements sharing one offset. When nil they keep
	// insertion order.
	Compare func(a, b E) int
	// Logger receives debug events; nil discards them.
	Logger *slog.Logger
}

// EndTimeFromDuration builds an end-time function for elements that expose
// a duration rather than an explicit end time.
func EndTimeFromDuration[E any](offsetOf, durationOf func(E) float64) func(E) float64 {
	return func(el E) float64 {
		return offsetOf(el) + durationOf(el)
	}
}

// OffsetTree stores a list of elements at each distinct offset.
type OffsetTree[E comparable] struct {
	indexed[float64, E]

	cfg OffsetConfig[E]
}

// NewOffsetTree creates an empty OffsetTree.
func NewOffsetTree[E comparable](cfg OffsetConfig[E]) (*OffsetTree[E], error) {
	if cfg.OffsetOf == nil {
		return nil, fmt.Errorf("offset tree: %w", ErrMissingPosition)
	}

	return &OffsetTree[E]{indexed: newOffsetIndexed(cfg), cfg: cfg}, nil
}

func newOffsetIndexed[E comparable](cfg OffsetConfig[E]) indexed[float64, E] {
	return newIndexed(cmp.Compare[float64], cfg.OffsetOf, identity,
		cfg.EndTimeOf, cfg.Compare, false, cfg.Logger)
}

func identity(offset float64) float64 {
	return offset
}

// Append adds el, which usually starts at or after every element already in
// the tree. In that case only the right spine is re-indexed, O(log n);
// otherwise Append falls back to Insert.
func (t *OffsetTree[E]) Append(el E) {
	offset := t.positionOf(el)

	if high, ok := t.avl.HighestPosition(); t.stale || (ok && offset < high) {
		t.Insert(el)

		return
	}

	length := t.Len()

	n := t.avl.CreateNodeAtPosition(offset)
	if len(n.Payload) == 0 {
		n.PayloadStart = length
	}

	t.attach(n, el)

	var spine []*Node[float64, []E]
	for s := t.avl.root; s != nil; s = s.Right {
		spine = append(spine, s)
	}

	for i := len(spine) - 1; i >= 0; i-- {
		if left := spine[i].Left; left != nil {
			recalcSubtreeRange(left)
			recalcEndTimes(left, t.endTimeOf)
		}

		recalcSubtreeRange(spine[i])
		recalcEndTimes(spine[i], t.endTimeOf)
	}
}

// PopulateFromSortedList replaces the contents of the tree from offsets and
// payloads sorted by offset. Equal offsets are grouped into one node.
func (t *OffsetTree[E]) PopulateFromSortedList(offsets []float64, payloads []E) error {
	return t.populateGrouped(offsets, payloads)
}

// SimultaneityDict maps every offset holding more than one element to
// those elements.
func (t *OffsetTree[E]) SimultaneityDict() map[float64][]E {
	result := make(map[float64][]E)

	for n := range t.avl.Nodes() {
		if len(n.Payload) > 1 {
			result[n.Position] = append([]E(nil), n.Payload...)
		}
	}

	return result
}

// Copy returns an independent tree holding the same elements.
func (t *OffsetTree[E]) Copy() *OffsetTree[E] {
	dup := &OffsetTree[E]{indexed: newOffsetIndexed(t.cfg), cfg: t.cfg}

	t.copyInto(&dup.indexed)

	return dup
}
