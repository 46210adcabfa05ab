// Package position provides the totally-ordered keys used to place payloads
// in an offset tree. A key is either a bare numeric offset or a composite
// sort tuple that orders many elements sharing one offset deterministically
// while still comparing cleanly against bare offsets.
package position

import (
	"cmp"
	"fmt"
	"math"
)

// Key is a tree position. Implementations are immutable values.
type Key interface {
	// Float returns the numeric offset of the key. Keys sorting at the end
	// of a collection report +Inf.
	Float() float64
}

// Offset is a bare floating-point position.
type Offset float64

// Float returns the offset as a float64.
func (o Offset) Float() float64 {
	return float64(o)
}

// String formats the offset.
func (o Offset) String() string {
	return fmt.Sprintf("%g", float64(o))
}

// SortTuple is a composite position for elements that share an offset.
// Fields compare lexicographically in declaration order.
type SortTuple struct {
	AtEnd          bool
	Offset         float64
	Priority       int
	ClassSortOrder int
	IsNotGrace     bool
	InsertIndex    int
}

// Float returns the tuple's offset, or +Inf when the tuple sorts at the end.
func (t SortTuple) Float() float64 {
	if t.AtEnd {
		return math.Inf(1)
	}

	return t.Offset
}

// WithOffset returns a copy of t at a different offset.
func (t SortTuple) WithOffset(offset float64) SortTuple {
	t.Offset = offset

	return t
}

// WithInsertIndex returns a copy of t with a different insertion index.
func (t SortTuple) WithInsertIndex(index int) SortTuple {
	t.InsertIndex = index

	return t
}

// String returns a short representation such as "SortTuple(0.0 <0.10.3>)".
func (t SortTuple) String() string {
	prefix := ""
	if t.AtEnd {
		prefix = "end "
	}

	grace := ""
	if !t.IsNotGrace {
		grace = " grace"
	}

	return fmt.Sprintf("SortTuple(%s%g <%d.%d.%d>%s)",
		prefix, t.Offset, t.Priority, t.ClassSortOrder, t.InsertIndex, grace)
}

// Compare orders two keys. A SortTuple compared with a bare Offset uses only
// its AtEnd flag and offset: an AtEnd tuple equals +Inf and exceeds every
// finite offset, otherwise the offsets decide and equal offsets are equal.
func Compare(a, b Key) int {
	ta, aIsTuple := a.(SortTuple)
	tb, bIsTuple := b.(SortTuple)

	switch {
	case aIsTuple && bIsTuple:
		return compareTuples(ta, tb)
	case aIsTuple:
		return compareTupleOffset(ta, b.Float())
	case bIsTuple:
		return -compareTupleOffset(tb, a.Float())
	default:
		return cmp.Compare(a.Float(), b.Float())
	}
}

// Less reports whether a sorts before b.
func Less(a, b Key) bool {
	return Compare(a, b) < 0
}

// Equal reports whether a and b occupy the same position.
func Equal(a, b Key) bool {
	return Compare(a, b) == 0
}

func compareTupleOffset(t SortTuple, offset float64) int {
	if t.AtEnd {
		if math.IsInf(offset, 1) {
			return 0
		}

		return 1
	}

	return cmp.Compare(t.Offset, offset)
}

func compareTuples(a, b SortTuple) int {
	if c := compareBool(a.AtEnd, b.AtEnd); c != 0 {
		return c
	}

	if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
		return c
	}

	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}

	if c := cmp.Compare(a.ClassSortOrder, b.ClassSortOrder); c != 0 {
		return c
	}

	if c := compareBool(a.IsNotGrace, b.IsNotGrace); c != 0 {
		return c
	}

	return cmp.Compare(a.InsertIndex, b.InsertIndex)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
