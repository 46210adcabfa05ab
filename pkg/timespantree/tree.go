// Package timespantree indexes timespans by offset and answers "what is
// sounding here" questions through Verticality values.
//
// A Verticality is computed on demand and keeps only a reference to its
// tree, so a caller may insert, remove or split timespans while walking the
// verticalities of the same tree.
package timespantree

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/offsettree/pkg/timespan"
	"github.com/Sumatoshi-tech/offsettree/pkg/tree"
)

// ErrInvalidWindow is returned for a non-positive verticality window size.
var ErrInvalidWindow = errors.New("window size must be positive")

// Options configures a Tree.
type Options struct {
	// Source names where the timespans came from, such as a score title.
	Source string
	Logger *slog.Logger
}

// Tree is an offset tree of timespans. Spans sharing an offset are ordered
// by end time, then by part name.
type Tree struct {
	*tree.OffsetTree[timespan.Span]

	opts   Options
	logger *slog.Logger
}

// New creates an empty Tree.
func New(opts Options) *Tree {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	offsets, err := tree.NewOffsetTree(tree.OffsetConfig[timespan.Span]{
		OffsetOf:  timespan.Span.Offset,
		EndTimeOf: timespan.Span.EndTime,
		Compare:   compareSpans,
		Logger:    logger,
	})
	if err != nil {
		// OffsetOf is always set above.
		panic(err)
	}

	return &Tree{OffsetTree: offsets, opts: opts, logger: logger}
}

// FromSorted builds a Tree from spans already sorted by offset.
func FromSorted(spans []timespan.Span, opts Options) (*Tree, error) {
	t := New(opts)

	offsets := make([]float64, len(spans))
	for i, s := range spans {
		offsets[i] = s.Offset()
	}

	if err := t.PopulateFromSortedList(offsets, spans); err != nil {
		return nil, fmt.Errorf("build timespan tree: %w", err)
	}

	return t, nil
}

func compareSpans(a, b timespan.Span) int {
	if c := cmp.Compare(a.EndTime(), b.EndTime()); c != 0 {
		return c
	}

	return cmp.Compare(partName(a), partName(b))
}

// Source returns the name given at construction.
func (t *Tree) Source() string {
	return t.opts.Source
}

// Remove removes spans by identity and returns how many were present.
func (t *Tree) Remove(spans ...timespan.Span) int {
	removed, _ := t.RemoveElements(spans, nil, true)

	return removed
}

// Copy returns an independent tree holding the same spans.
func (t *Tree) Copy() *Tree {
	return &Tree{OffsetTree: t.OffsetTree.Copy(), opts: t.opts, logger: t.logger}
}

// GetVerticalityAt returns the spans starting at, stopping at and sounding
// through offset. A zero-length span at offset is listed as starting only.
func (t *Tree) GetVerticalityAt(offset float64) *Verticality {
	stopping := slices.DeleteFunc(t.ElementsStoppingAt(offset), func(s timespan.Span) bool {
		return s.Offset() == offset
	})

	return &Verticality{
		Offset:           offset,
		StartTimespans:   t.ElementsStartingAt(offset),
		StopTimespans:    stopping,
		OverlapTimespans: t.ElementsOverlappingOffset(offset),
		tree:             t,
	}
}

// Iterate yields the verticality at every start offset, in ascending order or
// descending when reverse is set. Each step asks the live tree for the next
// offset, so the tree may be modified between steps.
func (t *Tree) Iterate(reverse bool) iter.Seq[*Verticality] {
	return func(yield func(*Verticality) bool) {
		first, ok := t.LowestPosition()
		if reverse {
			first, ok = t.HighestPosition()
		}

		if !ok {
			return
		}

		for v := t.GetVerticalityAt(first); v != nil; {
			if !yield(v) {
				return
			}

			if reverse {
				v = v.PreviousVerticality()
			} else {
				v = v.NextVerticality()
			}
		}
	}
}

// IterateNwise yields every run of n consecutive verticalities. With reverse
// set the walk runs backwards but each sequence is still in time order.
func (t *Tree) IterateNwise(n int, reverse bool) (iter.Seq[VerticalitySequence], error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, n)
	}

	return func(yield func(VerticalitySequence) bool) {
		window := make([]*Verticality, 0, n)

		for v := range t.Iterate(reverse) {
			window = append(window, v)
			if len(window) < n {
				continue
			}

			seq := make(VerticalitySequence, n)
			copy(seq, window)

			if reverse {
				for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
					seq[i], seq[j] = seq[j], seq[i]
				}
			}

			if !yield(seq) {
				return
			}

			window = window[1:]
		}
	}, nil
}

// FindPreviousInSamePart returns the closest span starting before s in the
// part of s, or nil.
func (t *Tree) FindPreviousInSamePart(s timespan.Span) timespan.Span {
	return t.findInSamePart(s, (*Verticality).PreviousVerticality)
}

// FindNextInSamePart returns the closest span starting after s in the part
// of s, or nil.
func (t *Tree) FindNextInSamePart(s timespan.Span) timespan.Span {
	return t.findInSamePart(s, (*Verticality).NextVerticality)
}

func (t *Tree) findInSamePart(s timespan.Span, step func(*Verticality) *Verticality) timespan.Span {
	part := partOf(s)

	for v := step(t.GetVerticalityAt(s.Offset())); v != nil; v = step(v) {
		for _, candidate := range v.StartTimespans {
			if partOf(candidate) == part {
				return candidate
			}
		}
	}

	return nil
}

// SplitAt splits every span sounding through each offset into the piece
// before and the piece from that offset. Spans starting or stopping at an
// offset are untouched.
func (t *Tree) SplitAt(offsets ...float64) error {
	for _, offset := range offsets {
		overlapping := t.ElementsOverlappingOffset(offset)
		if len(overlapping) == 0 {
			continue
		}

		if _, err := t.RemoveElements(overlapping, nil, false); err != nil {
			return fmt.Errorf("split at %g: %w", offset, err)
		}

		pieces := make([]timespan.Span, 0, 2*len(overlapping))
		for _, s := range overlapping {
			pieces = append(pieces, timespan.Split(s, offset)...)
		}

		t.Insert(pieces...)

		t.logger.Debug("split timespans", "offset", offset, "spans", len(overlapping))
	}

	return nil
}

// MaximumOverlap returns the largest number of spans sounding at any start
// offset. ok is false for an empty tree.
func (t *Tree) MaximumOverlap() (overlap int, ok bool) {
	return t.overlapExtreme(func(a, b int) bool { return a > b })
}

// MinimumOverlap returns the smallest number of spans sounding at any start
// offset. ok is false for an empty tree.
func (t *Tree) MinimumOverlap() (overlap int, ok bool) {
	return t.overlapExtreme(func(a, b int) bool { return a < b })
}

func (t *Tree) overlapExtreme(better func(a, b int) bool) (int, bool) {
	best, found := 0, false

	for v := range t.Iterate(false) {
		if degree := v.DegreeOfOverlap(); !found || better(degree, best) {
			best, found = degree, true
		}
	}

	return best, found
}

// AllParts returns the distinct parts of the stored spans in order of first
// appearance.
func (t *Tree) AllParts() []*timespan.Container {
	var parts []*timespan.Container

	seen := make(map[*timespan.Container]bool)

	for s := range t.Elements() {
		if p := partOf(s); p != nil && !seen[p] {
			seen[p] = true
			parts = append(parts, p)
		}
	}

	return parts
}

type parted interface {
	Part() *timespan.Container
}

func partOf(s timespan.Span) *timespan.Container {
	if p, ok := s.(parted); ok {
		return p.Part()
	}

	return nil
}

func partName(s timespan.Span) string {
	if p := partOf(s); p != nil {
		return p.Name
	}

	return ""
}
