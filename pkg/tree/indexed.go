package tree

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
)

// indexed is the machinery shared by ElementTree and OffsetTree: an AVL tree
// whose payload is a list of elements, plus the hooks that tell it where an
// element sits and when it ends.
type indexed[K any, E comparable] struct {
	avl *AVLTree[K, []E]

	positionOf func(E) K
	offsetOf   func(K) float64
	endTimeOf  func(E) float64
	// compareElements orders a payload list; nil keeps insertion order.
	compareElements func(a, b E) int
	// single replaces the payload on insert instead of appending to it.
	single bool
	stale  bool
	logger *slog.Logger
}

func newIndexed[K any, E comparable](
	compare func(a, b K) int,
	positionOf func(E) K,
	offsetOf func(K) float64,
	endTimeOf func(E) float64,
	compareElements func(a, b E) int,
	single bool,
	logger *slog.Logger,
) indexed[K, E] {
	if endTimeOf == nil {
		endTimeOf = func(el E) float64 { return offsetOf(positionOf(el)) }
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return indexed[K, E]{
		avl:             NewAVLTree[K, []E](compare),
		positionOf:      positionOf,
		offsetOf:        offsetOf,
		endTimeOf:       endTimeOf,
		compareElements: compareElements,
		single:          single,
		logger:          logger,
	}
}

// Len returns the number of elements in the tree.
func (t *indexed[K, E]) Len() int {
	if t.avl.root == nil {
		return 0
	}

	return t.avl.root.SubtreeStop
}

// Height returns the height of the root node, or -1 when empty.
func (t *indexed[K, E]) Height() int {
	return t.avl.Height()
}

// Root returns the root node, or nil when empty.
func (t *indexed[K, E]) Root() *Node[K, []E] {
	return t.avl.root
}

// Stale reports whether a removal with runUpdate=false left indices and end
// times out of date. Call Refresh to fix them.
func (t *indexed[K, E]) Stale() bool {
	return t.stale
}

// Refresh recomputes every node's index range and end-time bounds.
func (t *indexed[K, E]) Refresh() {
	if t.avl.root != nil {
		updateIndices(t.avl.root, 0)
		updateEndTimes(t.avl.root, t.endTimeOf)
	}

	t.stale = false
}

// Insert adds payloads at the positions derived from them.
func (t *indexed[K, E]) Insert(payloads ...E) {
	for _, el := range payloads {
		t.attach(t.avl.CreateNodeAtPosition(t.positionOf(el)), el)
	}

	t.Refresh()
}

// InsertAt adds payloads at explicit positions. It fails without touching
// the tree when the two slices differ in length.
func (t *indexed[K, E]) InsertAt(positions []K, payloads []E) error {
	if len(positions) != len(payloads) {
		return fmt.Errorf("%w: %d positions, %d payloads", ErrLengthMismatch, len(positions), len(payloads))
	}

	for i, el := range payloads {
		t.attach(t.avl.CreateNodeAtPosition(positions[i]), el)
	}

	t.Refresh()

	return nil
}

func (t *indexed[K, E]) attach(n *Node[K, []E], el E) {
	if t.single {
		n.Payload = []E{el}

		return
	}

	n.Payload = append(n.Payload, el)

	if t.compareElements != nil {
		slices.SortStableFunc(n.Payload, t.compareElements)
	}
}

// RemoveElements removes payloads by identity and returns how many were
// found. When positions is nil each position is derived from its payload.
// A node whose payload list empties is deleted. With runUpdate false the
// index and end-time refresh is skipped and the tree stays Stale until the
// caller runs Refresh or another mutating call.
func (t *indexed[K, E]) RemoveElements(payloads []E, positions []K, runUpdate bool) (int, error) {
	if positions != nil && len(positions) != len(payloads) {
		return 0, fmt.Errorf("%w: %d positions, %d payloads", ErrLengthMismatch, len(positions), len(payloads))
	}

	removed := 0

	for i, el := range payloads {
		pos := t.positionFor(el, positions, i)

		n := t.avl.GetNodeByPosition(pos)
		if n == nil {
			continue
		}

		idx := slices.Index(n.Payload, el)
		if idx < 0 {
			continue
		}

		n.Payload = slices.Delete(n.Payload, idx, idx+1)
		removed++

		if len(n.Payload) == 0 {
			t.avl.RemoveNode(pos)
		}
	}

	if runUpdate {
		t.Refresh()
	} else if removed > 0 {
		t.stale = true

		t.logger.Debug("tree refresh deferred", "removed", removed)
	}

	return removed, nil
}

func (t *indexed[K, E]) positionFor(el E, positions []K, i int) K {
	if positions != nil {
		return positions[i]
	}

	return t.positionOf(el)
}

// At returns the element at global index i. Negative indices count from
// the end.
func (t *indexed[K, E]) At(i int) (E, error) {
	var zero E

	length := t.Len()

	idx := i
	if idx < 0 {
		idx += length
	}

	if idx < 0 || idx >= length {
		return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, length)
	}

	n := t.avl.root
	for n != nil {
		switch {
		case idx < n.PayloadStart:
			n = n.Left
		case idx >= n.PayloadStop:
			n = n.Right
		default:
			return n.Payload[idx-n.PayloadStart], nil
		}
	}

	return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, length)
}

// Slice returns the elements in [start, stop) with sequence slicing rules:
// negative bounds count from the end and out-of-range bounds are clamped.
// It never fails; an empty range yields an empty slice.
func (t *indexed[K, E]) Slice(start, stop int) []E {
	length := t.Len()
	start = clampIndex(start, length)
	stop = clampIndex(stop, length)

	result := []E{}
	if start >= stop {
		return result
	}

	var collect func(n *Node[K, []E])

	collect = func(n *Node[K, []E]) {
		if n == nil || n.SubtreeStop <= start || n.SubtreeStart >= stop {
			return
		}

		collect(n.Left)

		for i, el := range n.Payload {
			if idx := n.PayloadStart + i; idx >= start && idx < stop {
				result = append(result, el)
			}
		}

		collect(n.Right)
	}

	collect(t.avl.root)

	return result
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}

	return max(0, min(i, length))
}

// Index returns the global index of el, looked up at its derived position.
func (t *indexed[K, E]) Index(el E) (int, error) {
	return t.IndexAt(el, t.positionOf(el))
}

// IndexAt returns the global index of el. The lookup is O(log n) when el
// sits at position; otherwise the whole tree is scanned.
func (t *indexed[K, E]) IndexAt(el E, position K) (int, error) {
	if n := t.avl.GetNodeByPosition(position); n != nil {
		if idx := slices.Index(n.Payload, el); idx >= 0 {
			return n.PayloadStart + idx, nil
		}
	}

	i := 0
	for candidate := range t.Elements() {
		if candidate == el {
			return i, nil
		}

		i++
	}

	return -1, ErrElementNotFound
}

// Elements yields every element in index order.
func (t *indexed[K, E]) Elements() iter.Seq[E] {
	return func(yield func(E) bool) {
		for n := range t.avl.Nodes() {
			for _, el := range n.Payload {
				if !yield(el) {
					return
				}
			}
		}
	}
}

// All returns every element in index order.
func (t *indexed[K, E]) All() []E {
	result := make([]E, 0, t.Len())
	for el := range t.Elements() {
		result = append(result, el)
	}

	return result
}

// ElementsStartingAt returns the elements whose position compares equal to
// position.
func (t *indexed[K, E]) ElementsStartingAt(position K) []E {
	var result []E

	var collect func(n *Node[K, []E])

	collect = func(n *Node[K, []E]) {
		if n == nil {
			return
		}

		c := t.avl.compare(position, n.Position)
		if c <= 0 {
			collect(n.Left)
		}

		if c == 0 {
			result = append(result, n.Payload...)
		}

		if c >= 0 {
			collect(n.Right)
		}
	}

	collect(t.avl.root)

	return result
}

// ElementsStoppingAt returns the elements whose end time equals offset.
// Subtrees whose end-time bounds exclude offset are skipped.
func (t *indexed[K, E]) ElementsStoppingAt(offset float64) []E {
	var result []E

	var collect func(n *Node[K, []E])

	collect = func(n *Node[K, []E]) {
		if n == nil || offset < n.EndTimeLow || offset > n.EndTimeHigh {
			return
		}

		collect(n.Left)

		for _, el := range n.Payload {
			if t.endTimeOf(el) == offset {
				result = append(result, el)
			}
		}

		collect(n.Right)
	}

	collect(t.avl.root)

	return result
}

// ElementsOverlappingOffset returns the elements that start strictly before
// offset and end strictly after it. Elements that merely start or stop at
// offset are excluded.
func (t *indexed[K, E]) ElementsOverlappingOffset(offset float64) []E {
	var result []E

	var collect func(n *Node[K, []E])

	collect = func(n *Node[K, []E]) {
		if n == nil {
			return
		}

		start := t.offsetOf(n.Position)

		switch {
		case start < offset && offset < n.EndTimeHigh:
			collect(n.Left)

			for _, el := range n.Payload {
				if offset < t.endTimeOf(el) {
					result = append(result, el)
				}
			}

			collect(n.Right)
		case offset <= start:
			collect(n.Left)
		}
	}

	collect(t.avl.root)

	return result
}

// AllOffsets returns every distinct start offset in ascending order.
func (t *indexed[K, E]) AllOffsets() []float64 {
	offsets := []float64{}

	for n := range t.avl.Nodes() {
		offset := t.offsetOf(n.Position)
		if len(offsets) == 0 || offsets[len(offsets)-1] != offset {
			offsets = append(offsets, offset)
		}
	}

	return offsets
}

// AllTimePoints returns every distinct start offset and end time in
// ascending order.
func (t *indexed[K, E]) AllTimePoints() []float64 {
	points := []float64{}

	for n := range t.avl.Nodes() {
		points = append(points, t.offsetOf(n.Position))

		for _, el := range n.Payload {
			points = append(points, t.endTimeOf(el))
		}
	}

	slices.Sort(points)

	return slices.Compact(points)
}

// AllPositions returns every node position in ascending order.
func (t *indexed[K, E]) AllPositions() []K {
	return t.avl.Positions()
}

// GetNodeByPosition returns the node at exactly position, or nil.
func (t *indexed[K, E]) GetNodeByPosition(position K) *Node[K, []E] {
	return t.avl.GetNodeByPosition(position)
}

// GetNodeAfter returns the node with the next greater position, or nil.
func (t *indexed[K, E]) GetNodeAfter(position K) *Node[K, []E] {
	return t.avl.GetNodeAfter(position)
}

// GetNodeBefore returns the node with the next smaller position, or nil.
func (t *indexed[K, E]) GetNodeBefore(position K) *Node[K, []E] {
	return t.avl.GetNodeBefore(position)
}

// GetPositionAfter returns the next greater position.
func (t *indexed[K, E]) GetPositionAfter(position K) (K, bool) {
	return t.avl.GetPositionAfter(position)
}

// GetPositionBefore returns the next smaller position.
func (t *indexed[K, E]) GetPositionBefore(position K) (K, bool) {
	return t.avl.GetPositionBefore(position)
}

// LowestPosition returns the smallest position in the tree.
func (t *indexed[K, E]) LowestPosition() (K, bool) {
	return t.avl.LowestPosition()
}

// HighestPosition returns the largest position in the tree.
func (t *indexed[K, E]) HighestPosition() (K, bool) {
	return t.avl.HighestPosition()
}

// Debug renders the tree structure.
func (t *indexed[K, E]) Debug() string {
	return t.avl.Debug()
}

// populateGrouped replaces the contents of the tree from positions and
// payloads sorted by position. Runs of equal positions share one node.
func (t *indexed[K, E]) populateGrouped(positions []K, payloads []E) error {
	if len(positions) != len(payloads) {
		return fmt.Errorf("%w: %d positions, %d payloads", ErrLengthMismatch, len(positions), len(payloads))
	}

	pairs := make([]Pair[K, []E], 0, len(positions))

	for i, pos := range positions {
		last := len(pairs) - 1
		if last >= 0 {
			c := t.avl.compare(pairs[last].Position, pos)
			if c > 0 {
				return fmt.Errorf("%w: index %d", ErrUnsortedPosition, i)
			}

			if c == 0 {
				if t.single {
					pairs[last].Payload = []E{payloads[i]}
				} else {
					pairs[last].Payload = t.sortedAppend(pairs[last].Payload, payloads[i])
				}

				continue
			}
		}

		pairs = append(pairs, Pair[K, []E]{Position: pos, Payload: []E{payloads[i]}})
	}

	t.avl.PopulateFromSortedList(pairs)
	t.Refresh()

	t.logger.Debug("tree populated from sorted list",
		"elements", len(payloads), "nodes", len(pairs), "height", t.avl.Height())

	return nil
}

func (t *indexed[K, E]) sortedAppend(list []E, el E) []E {
	list = append(list, el)

	if t.compareElements != nil {
		slices.SortStableFunc(list, t.compareElements)
	}

	return list
}

// clonePairs copies the tree's node positions and payload lists.
func (t *indexed[K, E]) clonePairs() []Pair[K, []E] {
	pairs := make([]Pair[K, []E], 0)

	for n := range t.avl.Nodes() {
		pairs = append(pairs, Pair[K, []E]{Position: n.Position, Payload: slices.Clone(n.Payload)})
	}

	return pairs
}

// copyInto rebuilds dst from the contents of t in O(n).
func (t *indexed[K, E]) copyInto(dst *indexed[K, E]) {
	dst.avl.PopulateFromSortedList(t.clonePairs())
	dst.Refresh()
}
