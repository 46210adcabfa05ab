// Package pitch provides the small pitch value carried by pitched timespans:
// a MIDI note number with name parsing and pitch-class helpers.
package pitch

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Sentinel errors.
var (
	ErrInvalidName = errors.New("invalid pitch name")
	ErrOutOfRange  = errors.New("pitch outside the MIDI range")
)

// MIDI range and layout constants.
const (
	MinMIDI         = 0
	MaxMIDI         = 127
	semitonesPerOct = 12
	middleCOctave   = 4
	middleC         = 60
)

// Pitch is a MIDI note number; middle C (C4) is 60.
type Pitch int

// Class is a pitch class, 0 (C) through 11 (B).
type Class int

var (
	classNames = [semitonesPerOct]string{"C", "C#", "D", "E-", "E", "F", "F#", "G", "G#", "A", "B-", "B"}
	stepOffset = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
)

// New returns the pitch with the given MIDI number.
func New(midi int) (Pitch, error) {
	if midi < MinMIDI || midi > MaxMIDI {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, midi)
	}

	return Pitch(midi), nil
}

// Parse reads a name such as "C4", "F#3", "B-2" or "Eb5". Sharps are '#',
// flats are '-' or 'b'. The octave is required and must not be negative,
// since '-' already spells a flat; use New for the lowest octave.
func Parse(name string) (Pitch, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidName)
	}

	step, ok := stepOffset[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	i := 1

accidentals:
	for ; i < len(s); i++ {
		switch s[i] {
		case '#':
			step++
		case '-', 'b':
			step--
		default:
			break accidentals
		}
	}

	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return New(middleC + (oct-middleCOctave)*semitonesPerOct + step)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(name string) Pitch {
	p, err := Parse(name)
	if err != nil {
		panic(err)
	}

	return p
}

// MIDI returns the MIDI note number.
func (p Pitch) MIDI() int {
	return int(p)
}

// Class returns the pitch class.
func (p Pitch) Class() Class {
	return Class(int(p) % semitonesPerOct)
}

// Octave returns the octave number, so that C4 is middle C.
func (p Pitch) Octave() int {
	return int(p)/semitonesPerOct - 1
}

// String returns the pitch name, spelling black keys as in classNames.
func (p Pitch) String() string {
	return p.Class().String() + strconv.Itoa(p.Octave())
}

func (c Class) String() string {
	return classNames[c]
}

// SortedSet returns the distinct pitches of ps in ascending order.
func SortedSet(ps []Pitch) []Pitch {
	out := slices.Clone(ps)
	slices.Sort(out)

	return slices.Compact(out)
}

// ClassSet returns the distinct pitch classes of ps in ascending order.
func ClassSet(ps []Pitch) []Class {
	out := make([]Class, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Class())
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// SameSet reports whether a and b contain the same distinct pitches.
func SameSet(a, b []Pitch) bool {
	return slices.Equal(SortedSet(a), SortedSet(b))
}
