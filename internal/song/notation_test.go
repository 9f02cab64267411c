package song

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromNotation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Note
		warnings int
	}{
		{
			name:     "note rest note",
			input:    "C4:1/4 | R:1/8 | G4:1/2",
			expected: []Note{{60, Quarter}, {0, Eighth}, {67, Half}},
		},
		{
			name:     "duration defaults to eighth",
			input:    "C4 | E4",
			expected: []Note{{60, Eighth}, {64, Eighth}},
		},
		{
			name:     "rest spellings",
			input:    "r:1/16|rest:1/4|-:whole|Rest",
			expected: []Note{{0, Sixteenth}, {0, Quarter}, {0, Whole}, {0, Eighth}},
		},
		{
			name:     "dotted durations and sharps",
			input:    "F#5:dotted 1/4 |  A#6 : dotted 1/8",
			expected: []Note{{78, DottedQuarter}, {94, DottedEighth}},
		},
		{
			name:     "empty segments skipped",
			input:    " | C5:3/4 || ",
			expected: []Note{{72, ThreeQuarter}},
		},
		{
			name:     "unknown note falls back to rest",
			input:    "H9:1/4",
			expected: []Note{{0, Quarter}},
			warnings: 1,
		},
		{
			name:     "unknown duration falls back to eighth",
			input:    "C4:1/3",
			expected: []Note{{60, Eighth}},
			warnings: 1,
		},
		{
			name:     "note names are case sensitive",
			input:    "c4:1/4",
			expected: []Note{{0, Quarter}},
			warnings: 1,
		},
		{
			name:     "both fallbacks in one segment",
			input:    "X:bogus",
			expected: []Note{{0, Eighth}},
			warnings: 2,
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, warnings := FromNotation(tt.input, "parsed")
			assert.Equal(t, "parsed", s.Name)
			assert.Equal(t, tt.expected, s.Notes)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestFromNotation_WarningDetail(t *testing.T) {
	_, warnings := FromNotation("C4:1/4 | Q7:1/4", "x")
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Index)
	assert.Equal(t, "Q7", warnings[0].Token)
	assert.Equal(t, `segment 2: unknown note, using rest "Q7"`, warnings[0].String())
}

func TestToCompactNotation(t *testing.T) {
	s := Song{Notes: []Note{{60, Quarter}, {0, Eighth}, {67, Half}}}
	assert.Equal(t, "C4:1/4 | R:1/8 | G4:1/2", ToCompactNotation(s))

	t.Run("unknown values render numerically", func(t *testing.T) {
		s := Song{Notes: []Note{{12, 7}}}
		assert.Equal(t, "Note 12:7 ticks", ToCompactNotation(s))
	})
}

func TestNotation_RoundTrip(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			want, err := Preset(name)
			require.NoError(t, err)

			got, warnings := FromNotation(ToCompactNotation(want), want.Name)
			assert.Empty(t, warnings)
			assert.Equal(t, want.Notes, got.Notes)
		})
	}
}

func TestNoteNames(t *testing.T) {
	tests := []struct {
		pitch uint8
		name  string
	}{
		{0, "Rest"},
		{60, "C4"},
		{61, "C#4"},
		{71, "B4"},
		{72, "C5"},
		{81, "A5"},
		{95, "B6"},
		{96, "Note 96"},
		{59, "Note 59"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, NewNote(tt.pitch).Name())
		})
	}

	assert.Equal(t, Sixteenth, NewNote(60).Duration, "default note duration MUST be 1/16")
	assert.Equal(t, "A5 (1/16)", NewNote(81).String())
}
