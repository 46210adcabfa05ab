package timespan

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/offsettree/pkg/pitch"
)

// Element is the domain object a timespan refers back to. The span never
// owns it.
type Element interface {
	fmt.Stringer
}

// Pitched is implemented by elements that sound one or more pitches.
type Pitched interface {
	Pitches() []pitch.Pitch
}

// Kind classifies a container in an element's parentage.
type Kind int

// Container kinds, outermost first.
const (
	KindScore Kind = iota
	KindPart
	KindMeasure
	KindVoice
)

func (k Kind) String() string {
	switch k {
	case KindScore:
		return "score"
	case KindPart:
		return "part"
	case KindMeasure:
		return "measure"
	case KindVoice:
		return "voice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Container is one level of the containment path of an element. Containers
// are compared by pointer, so two parts with equal names stay distinct.
type Container struct {
	Kind    Kind
	Name    string
	Number  int
	Offset  float64
	EndTime float64
}

func (c *Container) String() string {
	if c.Kind == KindMeasure {
		return fmt.Sprintf("%s %d", c.Kind, c.Number)
	}

	return fmt.Sprintf("%s %s", c.Kind, c.Name)
}

// Source describes where an element sits: the element itself, its
// containers outermost first, and the bounds of its immediate container.
type Source struct {
	Element       Element
	Parentage     []*Container
	ParentOffset  float64
	ParentEndTime float64
}

// ElementTimespan is a span that refers back to a domain element.
type ElementTimespan struct {
	Timespan

	src Source
}

// NewElementSpan returns an ElementTimespan over [offset, endTime).
func NewElementSpan(offset, endTime float64, src Source) (*ElementTimespan, error) {
	if err := validate(offset, endTime); err != nil {
		return nil, err
	}

	return &ElementTimespan{Timespan: Timespan{offset: offset, endTime: endTime}, src: src}, nil
}

// Element returns the referenced element, which may be nil.
func (t *ElementTimespan) Element() Element { return t.src.Element }

// Parentage returns the containers of the element, outermost first.
func (t *ElementTimespan) Parentage() []*Container { return t.src.Parentage }

// ParentOffset returns the offset of the immediate container.
func (t *ElementTimespan) ParentOffset() float64 { return t.src.ParentOffset }

// ParentEndTime returns the end time of the immediate container.
func (t *ElementTimespan) ParentEndTime() float64 { return t.src.ParentEndTime }

// ParentageByKind returns the innermost container of the given kind, or nil.
func (t *ElementTimespan) ParentageByKind(kind Kind) *Container {
	for i := len(t.src.Parentage) - 1; i >= 0; i-- {
		if t.src.Parentage[i].Kind == kind {
			return t.src.Parentage[i]
		}
	}

	return nil
}

// Part returns the part containing the element, or nil.
func (t *ElementTimespan) Part() *Container { return t.ParentageByKind(KindPart) }

// Measure returns the measure containing the element, or nil.
func (t *ElementTimespan) Measure() *Container { return t.ParentageByKind(KindMeasure) }

func (t *ElementTimespan) String() string {
	return fmt.Sprintf("<ElementTimespan (%g to %g) %s>", t.offset, t.endTime, elementName(t.src.Element))
}

func (t *ElementTimespan) kind() string { return "ElementTimespan" }

func (t *ElementTimespan) reframed(offset, endTime float64) Span {
	return &ElementTimespan{Timespan: Timespan{offset: offset, endTime: endTime}, src: t.src}
}

// WithOffset returns a copy starting at offset.
func (t *ElementTimespan) WithOffset(offset float64) (*ElementTimespan, error) {
	return reframe(t, offset, t.endTime)
}

// WithEndTime returns a copy ending at endTime.
func (t *ElementTimespan) WithEndTime(endTime float64) (*ElementTimespan, error) {
	return reframe(t, t.offset, endTime)
}

// Reframe returns a copy with both bounds replaced.
func (t *ElementTimespan) Reframe(offset, endTime float64) (*ElementTimespan, error) {
	return reframe(t, offset, endTime)
}

// CanMerge reports whether t and other can be merged and, if not, why.
func (t *ElementTimespan) CanMerge(other Span) (bool, string) {
	return CanMerge(t, other)
}

// MergeWith returns the span covering t and other.
func (t *ElementTimespan) MergeWith(other Span) (*ElementTimespan, error) {
	return mergeAs[*ElementTimespan](t, other)
}

// SplitAt splits t at offset. See Split.
func (t *ElementTimespan) SplitAt(offset float64) []*ElementTimespan {
	return splitAs(t, offset)
}

// PitchedTimespan is an ElementTimespan whose pitches are read from the
// element.
type PitchedTimespan struct {
	ElementTimespan
}

// NewPitchedSpan returns a PitchedTimespan over [offset, endTime).
func NewPitchedSpan(offset, endTime float64, src Source) (*PitchedTimespan, error) {
	if err := validate(offset, endTime); err != nil {
		return nil, err
	}

	return &PitchedTimespan{ElementTimespan{Timespan: Timespan{offset: offset, endTime: endTime}, src: src}}, nil
}

// Pitches returns the distinct pitches of the element in ascending order,
// or nil when the element has none (a rest, or a non-pitched element).
func (t *PitchedTimespan) Pitches() []pitch.Pitch {
	p, ok := t.src.Element.(Pitched)
	if !ok {
		return nil
	}

	ps := p.Pitches()
	if len(ps) == 0 {
		return nil
	}

	return pitch.SortedSet(ps)
}

func (t *PitchedTimespan) String() string {
	names := make([]string, 0)
	for _, p := range t.Pitches() {
		names = append(names, p.String())
	}

	return fmt.Sprintf("<PitchedTimespan (%g to %g) %s>", t.offset, t.endTime, strings.Join(names, " "))
}

func (t *PitchedTimespan) kind() string { return "PitchedTimespan" }

func (t *PitchedTimespan) reframed(offset, endTime float64) Span {
	return &PitchedTimespan{ElementTimespan{Timespan: Timespan{offset: offset, endTime: endTime}, src: t.src}}
}

// WithOffset returns a copy starting at offset.
func (t *PitchedTimespan) WithOffset(offset float64) (*PitchedTimespan, error) {
	return reframe(t, offset, t.endTime)
}

// WithEndTime returns a copy ending at endTime.
func (t *PitchedTimespan) WithEndTime(endTime float64) (*PitchedTimespan, error) {
	return reframe(t, t.offset, endTime)
}

// Reframe returns a copy with both bounds replaced.
func (t *PitchedTimespan) Reframe(offset, endTime float64) (*PitchedTimespan, error) {
	return reframe(t, offset, endTime)
}

// CanMerge reports whether t and other can be merged and, if not, why.
func (t *PitchedTimespan) CanMerge(other Span) (bool, string) {
	return CanMerge(t, other)
}

// MergeWith returns the span covering t and other.
func (t *PitchedTimespan) MergeWith(other Span) (*PitchedTimespan, error) {
	return mergeAs[*PitchedTimespan](t, other)
}

// SplitAt splits t at offset. See Split.
func (t *PitchedTimespan) SplitAt(offset float64) []*PitchedTimespan {
	return splitAs(t, offset)
}

func samePitches(a, b *PitchedTimespan) bool {
	return pitch.SameSet(a.Pitches(), b.Pitches())
}

func elementName(el Element) string {
	if el == nil {
		return "<nil>"
	}

	return el.String()
}
