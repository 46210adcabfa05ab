// Package timespan provides immutable half-open intervals [offset, endTime)
// and the element-carrying variants stored in a timespan tree.
//
// Every operation that changes a bound returns a fresh value; nothing in
// this package mutates a span after construction.
package timespan

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors.
var (
	ErrInvalidSpan  = errors.New("offset is after end time")
	ErrNotMergeable = errors.New("timespans cannot be merged")
)

// Span is implemented by Timespan, ElementTimespan and PitchedTimespan.
// The set is closed: merge and split rely on knowing the concrete kinds.
type Span interface {
	Offset() float64
	EndTime() float64
	Duration() float64
	String() string

	kind() string
	reframed(offset, endTime float64) Span
}

// Timespan is a bare interval with no element attached.
type Timespan struct {
	offset  float64
	endTime float64
}

// New returns the span [offset, endTime). offset may be -Inf and endTime
// +Inf; offset must not exceed endTime.
func New(offset, endTime float64) (*Timespan, error) {
	if err := validate(offset, endTime); err != nil {
		return nil, err
	}

	return &Timespan{offset: offset, endTime: endTime}, nil
}

// Unbounded returns the span (-Inf, +Inf).
func Unbounded() *Timespan {
	return &Timespan{offset: math.Inf(-1), endTime: math.Inf(1)}
}

func validate(offset, endTime float64) error {
	if math.IsNaN(offset) || math.IsNaN(endTime) || offset > endTime {
		return fmt.Errorf("%w: offset %g, end time %g", ErrInvalidSpan, offset, endTime)
	}

	return nil
}

func (t *Timespan) Offset() float64 { return t.offset }

func (t *Timespan) EndTime() float64 { return t.endTime }

// Duration returns EndTime minus Offset.
func (t *Timespan) Duration() float64 { return t.endTime - t.offset }

func (t *Timespan) String() string {
	return fmt.Sprintf("<Timespan %g %g>", t.offset, t.endTime)
}

func (t *Timespan) kind() string { return "Timespan" }

func (t *Timespan) reframed(offset, endTime float64) Span {
	return &Timespan{offset: offset, endTime: endTime}
}

// WithOffset returns a copy starting at offset.
func (t *Timespan) WithOffset(offset float64) (*Timespan, error) {
	return t.Reframe(offset, t.endTime)
}

// WithEndTime returns a copy ending at endTime.
func (t *Timespan) WithEndTime(endTime float64) (*Timespan, error) {
	return t.Reframe(t.offset, endTime)
}

// Reframe returns a copy with both bounds replaced.
func (t *Timespan) Reframe(offset, endTime float64) (*Timespan, error) {
	return reframe(t, offset, endTime)
}

// CanMerge reports whether t and other can be merged and, if not, why.
func (t *Timespan) CanMerge(other Span) (bool, string) {
	return CanMerge(t, other)
}

// MergeWith returns the span covering t and other.
func (t *Timespan) MergeWith(other Span) (*Timespan, error) {
	return mergeAs[*Timespan](t, other)
}

// SplitAt splits t at offset. See Split.
func (t *Timespan) SplitAt(offset float64) []*Timespan {
	return splitAs(t, offset)
}

// CanMerge reports whether a and b are contiguous spans of the same kind
// (and, for pitched spans, with the same pitch set). On failure the message
// names the first condition that does not hold.
func CanMerge(a, b Span) (bool, string) {
	if a.EndTime() != b.Offset() && b.EndTime() != a.Offset() {
		return false, fmt.Sprintf("cannot merge %s with %s: not contiguous", a, b)
	}

	if a.kind() != b.kind() {
		return false, fmt.Sprintf("cannot merge %s with %s: different types", a, b)
	}

	if pa, ok := a.(*PitchedTimespan); ok {
		if !samePitches(pa, b.(*PitchedTimespan)) {
			return false, fmt.Sprintf("cannot merge %s with %s: different pitches", a, b)
		}
	}

	return true, ""
}

// Merge returns the span running from the earlier span's offset to the later
// span's end time. The result carries the earlier span's element and
// parentage. It fails with ErrNotMergeable when CanMerge does.
func Merge(a, b Span) (Span, error) {
	if ok, reason := CanMerge(a, b); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMergeable, reason)
	}

	earlier, later := a, b
	if a.EndTime() != b.Offset() {
		earlier, later = b, a
	}

	return earlier.reframed(earlier.Offset(), later.EndTime()), nil
}

// Split returns s unchanged when offset lies outside [s.Offset(), s.EndTime()],
// and otherwise the two spans [s.Offset(), offset) and [offset, s.EndTime()).
// Both pieces keep the element and parentage of s.
func Split(s Span, offset float64) []Span {
	if offset < s.Offset() || s.EndTime() < offset {
		return []Span{s}
	}

	return []Span{
		s.reframed(s.Offset(), offset),
		s.reframed(offset, s.EndTime()),
	}
}

func reframe[S Span](s S, offset, endTime float64) (S, error) {
	if err := validate(offset, endTime); err != nil {
		var zero S

		return zero, err
	}

	return s.reframed(offset, endTime).(S), nil
}

func mergeAs[S Span](a S, b Span) (S, error) {
	merged, err := Merge(a, b)
	if err != nil {
		var zero S

		return zero, err
	}

	return merged.(S), nil
}

func splitAs[S Span](s S, offset float64) []S {
	pieces := Split(s, offset)

	out := make([]S, len(pieces))
	for i, piece := range pieces {
		out[i] = piece.(S)
	}

	return out
}
