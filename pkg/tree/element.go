package tree

import (
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/offsettree/pkg/position"
)

// ElementConfig configures an ElementTree.
type ElementConfig[E comparable] struct {
	// PositionOf derives the position of an element. Required.
	PositionOf func(E) position.Key
	// EndTimeOf returns an element's end time. When nil, elements end
	// where they start.
	EndTimeOf func(E) float64
	// Logger receives debug events; nil discards them.
	Logger *slog.Logger
}

// ElementTree stores exactly one element per position. Positions are
// position.Key values, so many elements sharing an offset can still be
// ordered by a position.SortTuple.
type ElementTree[E comparable] struct {
	indexed[position.Key, E]

	cfg ElementConfig[E]
}

// NewElementTree creates an empty ElementTree.
func NewElementTree[E comparable](cfg ElementConfig[E]) (*ElementTree[E], error) {
	if cfg.PositionOf == nil {
		return nil, fmt.Errorf("element tree: %w", ErrMissingPosition)
	}

	return &ElementTree[E]{
		indexed: newIndexed(position.Compare, cfg.PositionOf, position.Key.Float,
			cfg.EndTimeOf, nil, true, cfg.Logger),
		cfg: cfg,
	}, nil
}

// PopulateFromSortedList replaces the contents of the tree. positions must
// be ascending; an element at a repeated position replaces its predecessor.
func (t *ElementTree[E]) PopulateFromSortedList(positions []position.Key, payloads []E) error {
	return t.populateGrouped(positions, payloads)
}

// Copy returns an independent tree holding the same elements.
func (t *ElementTree[E]) Copy() *ElementTree[E] {
	dup := &ElementTree[E]{
		indexed: newIndexed(position.Compare, t.cfg.PositionOf, position.Key.Float,
			t.cfg.EndTimeOf, nil, true, t.cfg.Logger),
		cfg: t.cfg,
	}

	t.copyInto(&dup.indexed)

	return dup
}
