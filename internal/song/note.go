package song

import "fmt"

// Duration codes understood by Tile firmware, in device ticks.
const (
	ThirtySecond  uint8 = 0x02
	Sixteenth     uint8 = 0x03
	Eighth        uint8 = 0x06
	DottedEighth  uint8 = 0x09
	Quarter       uint8 = 0x0D
	DottedQuarter uint8 = 0x13
	Half          uint8 = 0x16
	ThreeQuarter  uint8 = 0x1A
	Whole         uint8 = 0x26
)

// DefaultDuration is the duration assumed when notation omits one or names an unknown value.
const DefaultDuration = Eighth

// Rest is the pitch value of a silent note.
const Rest uint8 = 0

var durationsByName = map[string]uint8{
	"1/32":       ThirtySecond,
	"1/16":       Sixteenth,
	"1/8":        Eighth,
	"dotted 1/8": DottedEighth,
	"1/4":        Quarter,
	"dotted 1/4": DottedQuarter,
	"1/2":        Half,
	"3/4":        ThreeQuarter,
	"whole":      Whole,
}

var durationNames = invert(durationsByName)

// pitch 60..95 covers C4..B6
var noteNames = func() map[uint8]string {
	names := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	m := map[uint8]string{Rest: "Rest"}
	for p := 60; p <= 95; p++ {
		m[uint8(p)] = fmt.Sprintf("%s%d", names[(p-60)%12], 4+(p-60)/12)
	}
	return m
}()

var pitchesByName = invert(noteNames)

func invert[K, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Note is a single (pitch, duration) pair. The zero pitch is a rest.
type Note struct {
	Pitch    uint8
	Duration uint8
}

// NewNote returns a note with the firmware's default 1/16 duration.
func NewNote(pitch uint8) Note {
	return Note{Pitch: pitch, Duration: Sixteenth}
}

// Name returns the note name, e.g. "C#5", "Rest", or "Note 12" for pitches outside the table.
func (n Note) Name() string {
	if name, ok := noteNames[n.Pitch]; ok {
		return name
	}
	return fmt.Sprintf("Note %d", n.Pitch)
}

// DurationName returns e.g. "dotted 1/4", or "N ticks" for codes outside the table.
func (n Note) DurationName() string {
	if name, ok := durationNames[n.Duration]; ok {
		return name
	}
	return fmt.Sprintf("%d ticks", n.Duration)
}

func (n Note) String() string {
	return fmt.Sprintf("%s (%s)", n.Name(), n.DurationName())
}

// IsRest reports whether the note is silent
func (n Note) IsRest() bool {
	return n.Pitch == Rest
}

// PitchForName looks up a note name such as "F#4" or "Rest".
func PitchForName(name string) (uint8, bool) {
	p, ok := pitchesByName[name]
	return p, ok
}

// DurationForName looks up a duration name such as "1/4" or "whole".
func DurationForName(name string) (uint8, bool) {
	d, ok := durationsByName[name]
	return d, ok
}
