package song

import (
	"fmt"
	"strings"
)

// NotationWarning records a token that fell back to a default while parsing.
type NotationWarning struct {
	Index int    // zero-based segment index among non-empty segments
	Token string // offending token
	Msg   string
}

func (w NotationWarning) String() string {
	return fmt.Sprintf("segment %d: %s %q", w.Index+1, w.Msg, w.Token)
}

// FromNotation parses compact notation such as "C4:1/8 | R:1/4 | G4:1/2".
//
// Segments are separated by '|'. Each segment is NOTE[:DURATION]; the duration
// defaults to 1/8. R, REST and - (any case) are rests. An unknown note becomes a
// rest and an unknown duration becomes 1/8; each such fallback is reported as a warning.
func FromNotation(notation, name string) (Song, []NotationWarning) {
	s := Song{Name: name}
	var warnings []NotationWarning

	idx := 0
	for _, part := range strings.Split(notation, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		noteTok, durTok := part, "1/8"
		if i := strings.Index(part, ":"); i >= 0 {
			noteTok, durTok = part[:i], part[i+1:]
		}
		noteTok = strings.TrimSpace(noteTok)
		durTok = strings.TrimSpace(durTok)

		duration, ok := DurationForName(durTok)
		if !ok {
			duration = DefaultDuration
			warnings = append(warnings, NotationWarning{Index: idx, Token: durTok, Msg: "unknown duration, using 1/8"})
		}

		var pitch uint8
		switch strings.ToUpper(noteTok) {
		case "R", "REST", "-":
			pitch = Rest
		default:
			if pitch, ok = PitchForName(noteTok); !ok {
				pitch = Rest
				warnings = append(warnings, NotationWarning{Index: idx, Token: noteTok, Msg: "unknown note, using rest"})
			}
		}

		s.Notes = append(s.Notes, Note{Pitch: pitch, Duration: duration})
		idx++
	}
	return s, warnings
}

// ToCompactNotation renders the song as "NAME:DURATION | ..." with rests as R.
func ToCompactNotation(s Song) string {
	parts := make([]string, len(s.Notes))
	for i, n := range s.Notes {
		if n.IsRest() {
			parts[i] = "R:" + n.DurationName()
		} else {
			parts[i] = n.Name() + ":" + n.DurationName()
		}
	}
	return strings.Join(parts, " | ")
}
