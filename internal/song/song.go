package song

import (
	"bytes"
	"fmt"
	"strings"
)

// Header opens every song blob.
var Header = []byte{0x01, 0x01, 0x00, 0x00, 0x18, 0x01}

// Scramble is the fixed 98-byte block that follows the header.
var Scramble = []byte{
	0x38, 0xEF, 0x1A, 0xF5, 0xFE, 0x3B, 0x48, 0xB5, 0x2C, 0x9A,
	0x53, 0xA3, 0x35, 0xAE, 0xFD, 0xB4, 0x7E, 0x59, 0xB2, 0x57,
	0x3A, 0xDE, 0x75, 0xDE, 0x09, 0x51, 0x43, 0x9F, 0x27, 0x3A,
	0x18, 0x27, 0xDB, 0x9B, 0xA2, 0xCF, 0x42, 0x4B, 0x67, 0x72,
	0x11, 0xCE, 0xC4, 0xE8, 0xC9, 0xBF, 0x33, 0xA7, 0x65, 0xFE,
	0xE2, 0xDC, 0x16, 0xDA, 0x48, 0x44, 0x82, 0x59, 0xE4, 0x54,
	0xC4, 0x91, 0x7E, 0x4B, 0x70, 0x54, 0x45, 0x81, 0x77, 0x34,
	0xF6, 0x68, 0xBC, 0x6A, 0x66, 0xDF, 0x46, 0x04, 0xD4, 0x7B,
	0x5E, 0x6D, 0xE4, 0x54, 0xFB, 0x2D, 0x13, 0x9D, 0x4B, 0x5C,
	0x77, 0xD9, 0x98, 0xF0, 0xA7, 0x63, 0x3F, 0x03,
}

// Terminator closes the note list.
var Terminator = []byte{0x00, 0x00, 0x00, 0x00}

// PreambleSize is the number of bytes before the first note pair.
const PreambleSize = 104

// Song is an ordered note sequence with a display name.
type Song struct {
	Name  string
	Notes []Note
}

// New returns an empty song
func New(name string) *Song {
	return &Song{Name: name}
}

// Add appends a note and returns the song for chaining.
func (s *Song) Add(pitch, duration uint8) *Song {
	s.Notes = append(s.Notes, Note{Pitch: pitch, Duration: duration})
	return s
}

// AddRest appends a silent note.
func (s *Song) AddRest(duration uint8) *Song {
	return s.Add(Rest, duration)
}

// Len returns the number of notes.
func (s Song) Len() int {
	return len(s.Notes)
}

func (s Song) String() string {
	return fmt.Sprintf("Song '%s' (%d notes)", s.Name, len(s.Notes))
}

// Encode serializes the song: header, scramble block, note pairs, terminator.
// Notes are written as-is.
func Encode(s Song) []byte {
	out := make([]byte, 0, PreambleSize+2*len(s.Notes)+len(Terminator))
	out = append(out, Header...)
	out = append(out, Scramble...)
	for _, n := range s.Notes {
		out = append(out, n.Pitch, n.Duration)
	}
	return append(out, Terminator...)
}

// Decode parses a song blob. The preamble is skipped unchecked; pairs are read
// until a (0,0) pair starts four zero bytes. Input without a preamble yields no notes.
// A genuine rest of duration 0 followed by another such pair is indistinguishable
// from the terminator and ends the song there.
func Decode(data []byte, name string) Song {
	s := Song{Name: name}
	if len(data) <= PreambleSize {
		return s
	}

	notes := data[PreambleSize:]
	for i := 0; i < len(notes)-1; i += 2 {
		pitch, duration := notes[i], notes[i+1]
		if pitch == 0 && duration == 0 && i+4 <= len(notes) && bytes.Equal(notes[i:i+4], Terminator) {
			break
		}
		s.Notes = append(s.Notes, Note{Pitch: pitch, Duration: duration})
	}
	return s
}

// ToNotation renders a numbered multi-line listing, one note per line.
func ToNotation(s Song) string {
	lines := make([]string, len(s.Notes))
	for i, n := range s.Notes {
		lines[i] = fmt.Sprintf("%3d. %s", i+1, n)
	}
	return strings.Join(lines, "\n")
}
