package tree

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/emirpasic/gods/trees/avltree"
	"github.com/emirpasic/gods/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testSeed         = 20260302
	testPermutations = 40
	testRandomNotes  = 200
)

// twoPartNotes returns 20 notes at 14 distinct offsets; 6 offsets hold two
// notes each, as in a two-part, two-measure exercise.
func twoPartNotes() []*note {
	var notes []*note

	for i := range 14 {
		offset := float64(i)
		notes = append(notes, &note{name: fmt.Sprintf("upper-%02d", i), offset: offset, duration: 1})

		if i%2 == 0 && i < 12 {
			notes = append(notes, &note{name: fmt.Sprintf("lower-%02d", i), offset: offset, duration: 2})
		}
	}

	return notes
}

func sortedOffsets(notes []*note) []float64 {
	offsets := make([]float64, len(notes))
	for i, n := range notes {
		offsets[i] = n.offset
	}

	return offsets
}

func randomNotes(rng *rand.Rand, count int) []*note {
	notes := make([]*note, count)
	for i := range notes {
		notes[i] = &note{
			name:     fmt.Sprintf("n%04d", i),
			offset:   float64(rng.IntN(count / 4)),
			duration: float64(rng.IntN(8)) / 2,
		}
	}

	return notes
}

func sortNotes(notes []*note) []*note {
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b *note) int {
		if a.offset != b.offset {
			if a.offset < b.offset {
				return -1
			}

			return 1
		}

		return compareNotes(a, b)
	})

	return sorted
}

// TestNewOffsetTree_RequiresOffset verifies the offset hook is mandatory.
func TestNewOffsetTree_RequiresOffset(t *testing.T) {
	t.Parallel()

	_, err := NewOffsetTree(OffsetConfig[*note]{})
	require.ErrorIs(t, err, ErrMissingPosition)
}

// TestOffsetTree_Empty verifies boundary behavior of an empty tree.
func TestOffsetTree_Empty(t *testing.T) {
	t.Parallel()

	tree := newNoteTree(t)

	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.AllOffsets())
	assert.Empty(t, tree.AllTimePoints())
	assert.Empty(t, tree.Slice(0, 10))
	assert.Empty(t, tree.ElementsStartingAt(0))
	assert.Empty(t, tree.ElementsStoppingAt(0))
	assert.Empty(t, tree.ElementsOverlappingOffset(0))

	_, err := tree.At(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

// TestOffsetTree_BulkScenario verifies a bulk-built two-part tree.
func TestOffsetTree_BulkScenario(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	require.NoError(t, tree.PopulateFromSortedList(sortedOffsets(notes), notes))

	requireInvariants(t, &tree.indexed)
	assert.Equal(t, 20, tree.Len())
	assert.Len(t, tree.AllOffsets(), 14)

	simultaneities := tree.SimultaneityDict()
	assert.Len(t, simultaneities, 6)

	for offset, group := range simultaneities {
		assert.Len(t, group, 2, "offset %v", offset)
		assert.Equal(t, "lower", group[0].name[:5], "lower sorts first by name")
	}

	assert.Equal(t, notes, tree.All())
}

// TestOffsetTree_SamePosition verifies many elements at one offset share a node.
func TestOffsetTree_SamePosition(t *testing.T) {
	t.Parallel()

	tree := newNoteTree(t)

	var notes []*note
	for i := range 8 {
		notes = append(notes, &note{name: fmt.Sprint(i), offset: 0, duration: float64(i + 1)})
	}

	tree.Insert(notes...)

	require.NotNil(t, tree.Root())
	assert.Nil(t, tree.Root().Left)
	assert.Nil(t, tree.Root().Right)
	assert.Len(t, tree.Root().Payload, 8)
	assert.Equal(t, 8, tree.Root().SubtreeStop-tree.Root().SubtreeStart)
	assert.Equal(t, 8, tree.Len())
	assert.Len(t, tree.SimultaneityDict(), 1)
}

// TestOffsetTree_StartStopOverlap verifies the three interval queries,
// including the exact-start and strict-inside cases.
func TestOffsetTree_StartStopOverlap(t *testing.T) {
	t.Parallel()

	long := &note{name: "long", offset: 0, duration: 4}
	mid := &note{name: "mid", offset: 2, duration: 1}
	late := &note{name: "late", offset: 3, duration: 2}
	point := &note{name: "point", offset: 5, duration: 0}

	tree := newNoteTree(t)
	tree.Insert(late, long, point, mid)
	requireInvariants(t, &tree.indexed)

	// At 2, mid starts while long is still sounding.
	assert.Equal(t, []*note{mid}, tree.ElementsStartingAt(2))
	assert.Empty(t, tree.ElementsStoppingAt(2))
	assert.Equal(t, []*note{long}, tree.ElementsOverlappingOffset(2))

	// Strictly inside late and long; mid stops at 3 while late starts.
	assert.Equal(t, []*note{late}, tree.ElementsStartingAt(3))
	assert.Equal(t, []*note{mid}, tree.ElementsStoppingAt(3))
	assert.Equal(t, []*note{long}, tree.ElementsOverlappingOffset(3))

	assert.Equal(t, []*note{long, late}, tree.ElementsOverlappingOffset(3.5))
	assert.Empty(t, tree.ElementsStartingAt(3.5))
	assert.Empty(t, tree.ElementsStoppingAt(3.5))

	// A zero-length element starts and stops at the same offset.
	assert.Equal(t, []*note{point}, tree.ElementsStartingAt(5))
	assert.ElementsMatch(t, []*note{late, point}, tree.ElementsStoppingAt(5))
	assert.Empty(t, tree.ElementsOverlappingOffset(5))

	assert.Equal(t, []float64{0, 2, 3, 5}, tree.AllOffsets())
	assert.Equal(t, []float64{0, 2, 3, 4, 5}, tree.AllTimePoints())
}

// TestOffsetTree_QueriesMatchBruteForce compares every pruned query with a
// linear scan over random notes.
func TestOffsetTree_QueriesMatchBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testSeed, 1))
	notes := randomNotes(rng, testRandomNotes)

	tree := newNoteTree(t)
	tree.Insert(notes...)
	requireInvariants(t, &tree.indexed)

	for q := -1.0; q <= float64(testRandomNotes/4)+5; q += 0.5 {
		var starting, stopping, overlapping []*note

		for _, n := range tree.All() {
			switch {
			case n.offset == q:
				starting = append(starting, n)
			case n.offset < q && q < n.endTime():
				overlapping = append(overlapping, n)
			}

			if n.endTime() == q {
				stopping = append(stopping, n)
			}
		}

		assert.ElementsMatch(t, starting, tree.ElementsStartingAt(q), "starting at %v", q)
		assert.ElementsMatch(t, stopping, tree.ElementsStoppingAt(q), "stopping at %v", q)
		assert.ElementsMatch(t, overlapping, tree.ElementsOverlappingOffset(q), "overlapping %v", q)
	}
}

// TestOffsetTree_IndexingAndSlicing verifies integer and slice access.
func TestOffsetTree_IndexingAndSlicing(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	tree.Insert(notes...)

	first, err := tree.At(0)
	require.NoError(t, err)
	assert.Same(t, notes[0], first)

	last, err := tree.At(-1)
	require.NoError(t, err)
	assert.Same(t, notes[len(notes)-1], last)

	_, err = tree.At(len(notes))
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = tree.At(-len(notes) - 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, notes[3:7], tree.Slice(3, 7))
	assert.Equal(t, notes[17:], tree.Slice(-3, 100))
	assert.Equal(t, notes, tree.Slice(-100, 100))
	assert.Empty(t, tree.Slice(7, 3))
	assert.Empty(t, tree.Slice(50, 60))
}

// TestOffsetTree_Index verifies the fast path, the scan fallback and absence.
func TestOffsetTree_Index(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	tree.Insert(notes...)

	for i, n := range notes {
		idx, err := tree.Index(n)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	// A stale position hint falls back to the linear scan.
	idx, err := tree.IndexAt(notes[5], 99)
	require.NoError(t, err)
	assert.Equal(t, 5, idx)

	_, err = tree.Index(&note{name: "stranger", offset: 1})
	require.ErrorIs(t, err, ErrElementNotFound)
}

// TestOffsetTree_InsertAtLengthMismatch verifies the tree is left untouched.
func TestOffsetTree_InsertAtLengthMismatch(t *testing.T) {
	t.Parallel()

	tree := newNoteTree(t)

	err := tree.InsertAt([]float64{1, 2}, []*note{{name: "a", offset: 1}})
	require.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, 0, tree.Len())

	_, err = tree.RemoveElements([]*note{{name: "a"}}, []float64{}, true)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

// TestOffsetTree_InsertAtExplicitPositions verifies positions override the
// derived offset.
func TestOffsetTree_InsertAtExplicitPositions(t *testing.T) {
	t.Parallel()

	a := &note{name: "a", offset: 0, duration: 1}
	tree := newNoteTree(t)

	require.NoError(t, tree.InsertAt([]float64{7}, []*note{a}))
	assert.Equal(t, []*note{a}, tree.ElementsStartingAt(7))
	assert.Empty(t, tree.ElementsStartingAt(0))

	removed, err := tree.RemoveElements([]*note{a}, []float64{7}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, tree.Len())
}

// TestOffsetTree_RemoveElements verifies identity removal and node deletion.
func TestOffsetTree_RemoveElements(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	tree.Insert(notes...)

	// Offset 0 holds two notes; removing one keeps the node.
	removed, err := tree.RemoveElements([]*note{notes[0]}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NotNil(t, tree.GetNodeByPosition(0))
	assert.Equal(t, 19, tree.Len())
	requireInvariants(t, &tree.indexed)

	// Removing the last note at 13 deletes its node.
	removed, err = tree.RemoveElements([]*note{notes[len(notes)-1]}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Nil(t, tree.GetNodeByPosition(13))
	requireInvariants(t, &tree.indexed)

	// Unknown elements are ignored.
	removed, err = tree.RemoveElements([]*note{{name: "ghost", offset: 3}, {name: "void", offset: 99}}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 18, tree.Len())
}

// TestOffsetTree_DeferredRefresh verifies runUpdate=false leaves the tree
// stale until the next refresh.
func TestOffsetTree_DeferredRefresh(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	tree.Insert(notes...)

	moved := notes[4]

	_, err := tree.RemoveElements([]*note{moved}, nil, false)
	require.NoError(t, err)
	assert.True(t, tree.Stale())

	moved.offset += 0.5
	tree.Insert(moved)

	assert.False(t, tree.Stale())
	assert.Equal(t, []*note{moved}, tree.ElementsStartingAt(moved.offset))
	requireInvariants(t, &tree.indexed)
}

// TestOffsetTree_InsertRemoveInverse verifies inserting then removing an
// element restores the previous traversal.
func TestOffsetTree_InsertRemoveInverse(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testSeed, 2))

	for range testPermutations {
		tree := newNoteTree(t)
		tree.Insert(randomNotes(rng, 50)...)

		before := tree.All()
		extra := &note{name: "extra", offset: float64(rng.IntN(20)), duration: 1}

		tree.Insert(extra)
		requireInvariants(t, &tree.indexed)

		removed, err := tree.RemoveElements([]*note{extra}, nil, true)
		require.NoError(t, err)
		require.Equal(t, 1, removed)

		assert.Equal(t, before, tree.All())
		requireInvariants(t, &tree.indexed)
	}
}

// TestOffsetTree_RoundTripBuild verifies shuffled one-at-a-time insertion
// and the sorted bulk build produce identical traversals.
func TestOffsetTree_RoundTripBuild(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testSeed, 3))
	notes := randomNotes(rng, testRandomNotes)
	sorted := sortNotes(notes)

	bulk := newNoteTree(t)
	require.NoError(t, bulk.PopulateFromSortedList(sortedOffsets(sorted), sorted))
	requireInvariants(t, &bulk.indexed)

	for range testPermutations {
		shuffled := slices.Clone(notes)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		incremental := newNoteTree(t)
		for _, n := range shuffled {
			incremental.Insert(n)
		}

		requireInvariants(t, &incremental.indexed)
		require.Equal(t, bulk.All(), incremental.All())
	}
}

// TestOffsetTree_RandomRemovals removes random notes one by one, checking
// every invariant after each step.
func TestOffsetTree_RandomRemovals(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testSeed, 4))
	notes := randomNotes(rng, testRandomNotes)

	tree := newNoteTree(t)
	tree.Insert(notes...)

	rng.Shuffle(len(notes), func(i, j int) { notes[i], notes[j] = notes[j], notes[i] })

	for i, n := range notes {
		removed, err := tree.RemoveElements([]*note{n}, nil, true)
		require.NoError(t, err)
		require.Equal(t, 1, removed)
		require.Equal(t, len(notes)-i-1, tree.Len())

		if i%10 == 0 {
			requireInvariants(t, &tree.indexed)
		}
	}

	assert.Nil(t, tree.Root())
}

// TestOffsetTree_PopulateRejectsUnsorted verifies descending input is reported.
func TestOffsetTree_PopulateRejectsUnsorted(t *testing.T) {
	t.Parallel()

	tree := newNoteTree(t)
	a := &note{name: "a", offset: 2}
	b := &note{name: "b", offset: 1}

	err := tree.PopulateFromSortedList([]float64{2, 1}, []*note{a, b})
	require.ErrorIs(t, err, ErrUnsortedPosition)

	err = tree.PopulateFromSortedList([]float64{1}, []*note{a, b})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

// TestOffsetTree_Append verifies the right-spine fast path keeps every
// invariant, and that out-of-order appends fall back to Insert.
func TestOffsetTree_Append(t *testing.T) {
	t.Parallel()

	tree := newNoteTree(t)

	var want []*note

	for i := range 100 {
		n := &note{name: fmt.Sprintf("a%03d", i), offset: float64(i / 3), duration: float64(i % 4)}
		tree.Append(n)
		want = append(want, n)

		requireInvariants(t, &tree.indexed)
	}

	assert.Equal(t, sortNotes(want), tree.All())

	early := &note{name: "early", offset: 1.5, duration: 1}
	tree.Append(early)

	requireInvariants(t, &tree.indexed)
	assert.Equal(t, []*note{early}, tree.ElementsStartingAt(1.5))
}

// TestOffsetTree_Copy verifies copies are independent.
func TestOffsetTree_Copy(t *testing.T) {
	t.Parallel()

	notes := sortNotes(twoPartNotes())
	tree := newNoteTree(t)
	tree.Insert(notes...)

	dup := tree.Copy()
	requireInvariants(t, &dup.indexed)
	assert.Equal(t, tree.All(), dup.All())

	_, err := dup.RemoveElements([]*note{notes[0]}, nil, true)
	require.NoError(t, err)

	assert.Equal(t, 20, tree.Len())
	assert.Equal(t, 19, dup.Len())
}

// TestOffsetTree_MatchesReferenceAVL compares ordering and neighbor queries
// with an independent AVL implementation.
func TestOffsetTree_MatchesReferenceAVL(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testSeed, 5))
	notes := randomNotes(rng, testRandomNotes)

	tree := newNoteTree(t)
	reference := avltree.NewWith(utils.Float64Comparator)

	for _, n := range notes {
		tree.Insert(n)
		reference.Put(n.offset, struct{}{})
	}

	var referenceKeys []float64
	for _, key := range reference.Keys() {
		referenceKeys = append(referenceKeys, key.(float64))
	}

	assert.Equal(t, referenceKeys, tree.AllOffsets())

	for q := -0.5; q < float64(testRandomNotes/4)+1; q += 1 {
		after, ok := tree.GetPositionAfter(q)
		ceiling, found := reference.Ceiling(q)

		require.Equal(t, found, ok, "after %v", q)

		if found {
			assert.InDelta(t, ceiling.Key.(float64), after, 0, "after %v", q)
		}

		before, ok := tree.GetPositionBefore(q)
		floor, found := reference.Floor(q)

		require.Equal(t, found, ok, "before %v", q)

		if found {
			assert.InDelta(t, floor.Key.(float64), before, 0, "before %v", q)
		}
	}
}
