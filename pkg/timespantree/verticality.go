package timespantree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/offsettree/pkg/pitch"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespan"
)

// Verticality is what is sounding at one offset. The three span lists are
// disjoint: spans starting exactly at Offset, spans stopping exactly at
// Offset, and spans that started before Offset and stop after it.
type Verticality struct {
	Offset           float64
	StartTimespans   []timespan.Span
	StopTimespans    []timespan.Span
	OverlapTimespans []timespan.Span

	tree *Tree
}

// Motion pairs a span with the span that precedes it in the same part. For
// oblique motion both fields hold the same sustained span.
type Motion struct {
	Previous timespan.Span
	Current  timespan.Span
}

// Chord is the vertical sonority of a Verticality.
type Chord struct {
	Offset   float64
	Duration float64
	Pitches  []pitch.Pitch
}

func (c Chord) String() string {
	return fmt.Sprintf("<Chord %g+%g [%s]>", c.Offset, c.Duration, pitchNames(c.Pitches))
}

// Tree returns the tree the verticality was read from.
func (v *Verticality) Tree() *Tree {
	return v.tree
}

// NextStartOffset returns the first start offset after v in the live tree.
func (v *Verticality) NextStartOffset() (float64, bool) {
	return v.tree.GetPositionAfter(v.Offset)
}

// NextVerticality returns the verticality at the next start offset, or nil
// at the end of the tree.
func (v *Verticality) NextVerticality() *Verticality {
	next, ok := v.NextStartOffset()
	if !ok {
		return nil
	}

	return v.tree.GetVerticalityAt(next)
}

// PreviousVerticality returns the verticality at the previous start offset,
// or nil at the start of the tree.
func (v *Verticality) PreviousVerticality() *Verticality {
	prev, ok := v.tree.GetPositionBefore(v.Offset)
	if !ok {
		return nil
	}

	return v.tree.GetVerticalityAt(prev)
}

// StartAndOverlapTimespans returns the spans sounding at Offset.
func (v *Verticality) StartAndOverlapTimespans() []timespan.Span {
	return slices.Concat(v.StartTimespans, v.OverlapTimespans)
}

// DegreeOfOverlap returns the number of spans sounding at Offset.
func (v *Verticality) DegreeOfOverlap() int {
	return len(v.StartTimespans) + len(v.OverlapTimespans)
}

// IsEmpty reports whether nothing starts, stops or sounds at Offset.
func (v *Verticality) IsEmpty() bool {
	return len(v.StartTimespans) == 0 && len(v.StopTimespans) == 0 && len(v.OverlapTimespans) == 0
}

// PitchSet returns the distinct pitches sounding at Offset, ascending.
func (v *Verticality) PitchSet() []pitch.Pitch {
	var all []pitch.Pitch
	for _, s := range v.StartAndOverlapTimespans() {
		all = append(all, pitchesOf(s)...)
	}

	return pitch.SortedSet(all)
}

// PitchClassSet returns the distinct pitch classes sounding at Offset.
func (v *Verticality) PitchClassSet() []pitch.Class {
	return pitch.ClassSet(v.PitchSet())
}

// TimeToNextEvent returns the distance to the next start offset. At the last
// start offset it is the distance to the latest end time of the sounding
// spans. ok is false when nothing follows.
func (v *Verticality) TimeToNextEvent() (float64, bool) {
	if next, ok := v.NextStartOffset(); ok {
		return next - v.Offset, true
	}

	sounding := v.StartAndOverlapTimespans()
	if len(sounding) == 0 {
		return 0, false
	}

	end := sounding[0].EndTime()
	for _, s := range sounding[1:] {
		end = max(end, s.EndTime())
	}

	return end - v.Offset, true
}

// ToChord returns the pitch set as a chord lasting until the next event.
func (v *Verticality) ToChord() Chord {
	duration, _ := v.TimeToNextEvent()

	return Chord{Offset: v.Offset, Duration: duration, Pitches: v.PitchSet()}
}

// GetPairedMotion pairs every span starting at Offset with the previous span
// in its part. Pairs involving a rest are skipped unless includeRests is
// set; with includeOblique every sustained span is paired with itself.
func (v *Verticality) GetPairedMotion(includeRests, includeOblique bool) []Motion {
	var motions []Motion

	for _, current := range v.StartTimespans {
		previous := v.tree.FindPreviousInSamePart(current)
		if previous == nil {
			continue
		}

		if !includeRests && (len(pitchesOf(previous)) == 0 || len(pitchesOf(current)) == 0) {
			continue
		}

		motions = append(motions, Motion{Previous: previous, Current: current})
	}

	if includeOblique {
		for _, sustained := range v.OverlapTimespans {
			motions = append(motions, Motion{Previous: sustained, Current: sustained})
		}
	}

	return motions
}

func (v *Verticality) String() string {
	return fmt.Sprintf("<Verticality %g {%s}>", v.Offset, pitchNames(v.PitchSet()))
}

// VerticalitySequence is a run of consecutive verticalities in time order.
type VerticalitySequence []*Verticality

// Unwrap groups the spans of the run by part: spans sounding at the first
// verticality, then spans starting at each later one. Parts are keyed by
// pointer, so two parts sharing a name get separate horizontalities. Spans
// outside any part are grouped under the nil key.
func (s VerticalitySequence) Unwrap() map[*timespan.Container]*Horizontality {
	unwrapped := make(map[*timespan.Container]*Horizontality)

	add := func(span timespan.Span) {
		part := partOf(span)

		h, ok := unwrapped[part]
		if !ok {
			h = &Horizontality{Part: part}
			unwrapped[part] = h
		}

		h.Timespans = append(h.Timespans, span)
	}

	if len(s) == 0 {
		return unwrapped
	}

	for _, span := range s[0].OverlapTimespans {
		add(span)
	}

	for _, v := range s {
		for _, span := range v.StartTimespans {
			add(span)
		}
	}

	return unwrapped
}

func (s VerticalitySequence) String() string {
	lines := make([]string, len(s))
	for i, v := range s {
		lines[i] = "\t" + v.String()
	}

	return "<VerticalitySequence: [\n" + strings.Join(lines, "\n") + "\n]>"
}

// Horizontality is the time-ordered spans of one part.
type Horizontality struct {
	Part      *timespan.Container
	Timespans []timespan.Span
}

// HasPassingTone reports whether the first three spans move by strictly
// ascending or strictly descending lowest pitch.
func (h *Horizontality) HasPassingTone() bool {
	p, ok := h.firstThreeLowest()
	if !ok {
		return false
	}

	return (p[0] < p[1] && p[1] < p[2]) || (p[0] > p[1] && p[1] > p[2])
}

// HasNeighborTone reports whether the first three spans leave a pitch by
// less than a minor third and return to it.
func (h *Horizontality) HasNeighborTone() bool {
	p, ok := h.firstThreeLowest()
	if !ok {
		return false
	}

	step := p[1] - p[0]

	return p[0] == p[2] && step != 0 && step > -3 && step < 3
}

// HasNoMotion reports whether every span sounds the same pitch set.
func (h *Horizontality) HasNoMotion() bool {
	if len(h.Timespans) == 0 {
		return false
	}

	first := pitchesOf(h.Timespans[0])
	for _, s := range h.Timespans[1:] {
		if !pitch.SameSet(first, pitchesOf(s)) {
			return false
		}
	}

	return true
}

func (h *Horizontality) firstThreeLowest() ([3]pitch.Pitch, bool) {
	var out [3]pitch.Pitch

	if len(h.Timespans) < len(out) {
		return out, false
	}

	for i := range out {
		ps := pitchesOf(h.Timespans[i])
		if len(ps) == 0 {
			return out, false
		}

		out[i] = ps[0]
	}

	return out, true
}

func pitchesOf(s timespan.Span) []pitch.Pitch {
	if p, ok := s.(timespan.Pitched); ok {
		return p.Pitches()
	}

	return nil
}

func pitchNames(ps []pitch.Pitch) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}

	return strings.Join(names, " ")
}
