// Package score loads small YAML scores (parts of measures of notes) and
// turns them into timespans and trees. It is the construction side of the
// offset tree: it produces the flat, sorted (position, element) sequence the
// trees are bulk-built from.
package score

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/offsettree/pkg/pitch"
	"github.com/Sumatoshi-tech/offsettree/pkg/position"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespan"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespantree"
	"github.com/Sumatoshi-tech/offsettree/pkg/tree"
)

const tracerName = "offsettree/score"

// noteSortOrder is the class sort order of notes and rests in sort tuples.
const noteSortOrder = 20

// Score is a loaded score.
type Score struct {
	Title string
	Parts []*Part

	container *timespan.Container
}

// Part is one voice of a score.
type Part struct {
	Name     string
	Measures []*Measure

	container *timespan.Container
}

// Measure is a bar of a part. Offset and Duration are absolute.
type Measure struct {
	Number   int
	Offset   float64
	Duration float64
	Notes    []*Note

	container *timespan.Container
}

// Note is a note, chord or rest. Offset is absolute.
type Note struct {
	Offset   float64
	Duration float64
	Rest     bool

	pitches []pitch.Pitch
	part    *Part
	measure *Measure
	tuple   position.SortTuple
}

// EndTime returns Offset plus Duration.
func (n *Note) EndTime() float64 {
	return n.Offset + n.Duration
}

// Pitches returns the sounding pitches, or nil for a rest.
func (n *Note) Pitches() []pitch.Pitch {
	return slices.Clone(n.pitches)
}

// Part returns the containing part.
func (n *Note) Part() *Part { return n.part }

// Measure returns the containing measure.
func (n *Note) Measure() *Measure { return n.measure }

// SortTuple returns the position of the note in an element tree.
func (n *Note) SortTuple() position.SortTuple { return n.tuple }

func (n *Note) String() string {
	if n.Rest || len(n.pitches) == 0 {
		return "rest"
	}

	names := make([]string, len(n.pitches))
	for i, p := range n.pitches {
		names[i] = p.String()
	}

	return strings.Join(names, " ")
}

func fromDocument(doc document) (*Score, error) {
	s := &Score{Title: doc.Title}
	s.container = &timespan.Container{Kind: timespan.KindScore, Name: doc.Title}

	insertIndex := 0

	for _, pd := range doc.Parts {
		part := &Part{Name: pd.Name}
		part.container = &timespan.Container{Kind: timespan.KindPart, Name: pd.Name}

		for _, md := range pd.Measures {
			m := &Measure{Number: md.Number, Offset: md.Offset, Duration: md.Duration}

			for _, nd := range md.Notes {
				n, err := newNote(nd, part, m)
				if err != nil {
					return nil, fmt.Errorf("%w: part %q measure %d: %w", ErrInvalidScore, pd.Name, md.Number, err)
				}

				n.tuple = position.SortTuple{
					Offset:         n.Offset,
					ClassSortOrder: noteSortOrder,
					IsNotGrace:     n.Duration > 0,
					InsertIndex:    insertIndex,
				}
				insertIndex++

				m.Notes = append(m.Notes, n)
				m.Duration = max(m.Duration, n.EndTime()-m.Offset)
			}

			m.container = &timespan.Container{
				Kind:    timespan.KindMeasure,
				Name:    pd.Name,
				Number:  m.Number,
				Offset:  m.Offset,
				EndTime: m.Offset + m.Duration,
			}

			part.Measures = append(part.Measures, m)
		}

		if last := len(part.Measures); last > 0 {
			part.container.EndTime = part.Measures[last-1].container.EndTime
		}

		s.Parts = append(s.Parts, part)
	}

	return s, nil
}

func newNote(nd noteDoc, part *Part, m *Measure) (*Note, error) {
	n := &Note{
		Offset:   m.Offset + nd.Offset,
		Duration: nd.Duration,
		Rest:     nd.Rest,
		part:     part,
		measure:  m,
	}

	if nd.Rest && len(nd.Pitches) > 0 {
		return nil, fmt.Errorf("rest at %g has pitches", n.Offset)
	}

	for _, name := range nd.Pitches {
		p, err := pitch.Parse(name)
		if err != nil {
			return nil, err
		}

		n.pitches = append(n.pitches, p)
	}

	return n, nil
}

// Notes returns every note of every part, part by part.
func (s *Score) Notes() []*Note {
	var notes []*Note

	for _, part := range s.Parts {
		for _, m := range part.Measures {
			notes = append(notes, m.Notes...)
		}
	}

	return notes
}

// Flatten returns one pitched timespan per note, sorted by offset, then end
// time, then part name. Each span's parentage is score, part, measure.
func (s *Score) Flatten() []*timespan.PitchedTimespan {
	var spans []*timespan.PitchedTimespan

	for _, n := range s.Notes() {
		m := n.measure.container

		ts, err := timespan.NewPitchedSpan(n.Offset, n.EndTime(), timespan.Source{
			Element:       n,
			Parentage:     []*timespan.Container{s.container, n.part.container, m},
			ParentOffset:  m.Offset,
			ParentEndTime: m.EndTime,
		})
		if err != nil {
			// Durations are validated non-negative by the schema.
			panic(err)
		}

		spans = append(spans, ts)
	}

	slices.SortStableFunc(spans, func(a, b *timespan.PitchedTimespan) int {
		if c := cmp.Compare(a.Offset(), b.Offset()); c != 0 {
			return c
		}

		if c := cmp.Compare(a.EndTime(), b.EndTime()); c != 0 {
			return c
		}

		return cmp.Compare(a.Part().Name, b.Part().Name)
	})

	return spans
}

// BuildTree bulk-builds a timespan tree from the flattened score.
func (s *Score) BuildTree(ctx context.Context, logger *slog.Logger) (*timespantree.Tree, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "score.BuildTree",
		trace.WithAttributes(attribute.String("score.title", s.Title)))
	defer span.End()

	flat := s.Flatten()

	spans := make([]timespan.Span, len(flat))
	for i, ts := range flat {
		spans[i] = ts
	}

	t, err := timespantree.FromSorted(spans, timespantree.Options{Source: s.Title, Logger: logger})
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tree.elements", t.Len()),
		attribute.Int("tree.height", t.Height()),
	)

	return t, nil
}

// ElementTree builds a tree holding one note per sort tuple, so that notes
// sharing an offset keep their document order.
func (s *Score) ElementTree(logger *slog.Logger) (*tree.ElementTree[*Note], error) {
	t, err := tree.NewElementTree(tree.ElementConfig[*Note]{
		PositionOf: func(n *Note) position.Key { return n.tuple },
		EndTimeOf:  (*Note).EndTime,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	notes := s.Notes()
	slices.SortFunc(notes, func(a, b *Note) int {
		return position.Compare(a.tuple, b.tuple)
	})

	positions := make([]position.Key, len(notes))
	for i, n := range notes {
		positions[i] = n.tuple
	}

	if err := t.PopulateFromSortedList(positions, notes); err != nil {
		return nil, fmt.Errorf("build element tree: %w", err)
	}

	return t, nil
}
