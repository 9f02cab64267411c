package song

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPreset is returned by Preset for names outside the preset table.
var ErrUnknownPreset = errors.New("unknown preset")

type noteSpec struct {
	name     string
	duration string
}

// build assembles a song from table-checked note and duration names
func build(title string, specs ...noteSpec) Song {
	s := Song{Name: title, Notes: make([]Note, 0, len(specs))}
	for _, sp := range specs {
		pitch, ok := PitchForName(sp.name)
		if !ok {
			panic(fmt.Sprintf("preset %q: bad note %q", title, sp.name))
		}
		dur, ok := DurationForName(sp.duration)
		if !ok {
			panic(fmt.Sprintf("preset %q: bad duration %q", title, sp.duration))
		}
		s.Notes = append(s.Notes, Note{Pitch: pitch, Duration: dur})
	}
	return s
}

// Presets maps preset names to their constructors.
var Presets = map[string]func() Song{
	"simple_scale": func() Song {
		return build("C Major Scale",
			noteSpec{"C4", "1/4"}, noteSpec{"D4", "1/4"}, noteSpec{"E4", "1/4"}, noteSpec{"F4", "1/4"},
			noteSpec{"G4", "1/4"}, noteSpec{"A4", "1/4"}, noteSpec{"B4", "1/4"}, noteSpec{"C5", "1/4"},
		)
	},
	"doorbell": func() Song {
		return build("Doorbell", noteSpec{"E5", "1/4"}, noteSpec{"C5", "1/2"})
	},
	"alert_beeps": func() Song {
		beep := []noteSpec{{"A5", "1/16"}, {"Rest", "1/16"}}
		return build("Alert Beeps", append(append(beep, beep...), beep...)...)
	},
	"happy_tune": func() Song {
		return build("Happy Tune",
			noteSpec{"C4", "1/8"}, noteSpec{"E4", "1/8"}, noteSpec{"G4", "1/8"},
			noteSpec{"C5", "1/4"}, noteSpec{"G4", "1/8"}, noteSpec{"C5", "1/2"},
		)
	},
	"twinkle_twinkle": func() Song {
		return build("Twinkle Twinkle",
			noteSpec{"C4", "1/4"}, noteSpec{"C4", "1/4"}, noteSpec{"G4", "1/4"}, noteSpec{"G4", "1/4"},
			noteSpec{"A4", "1/4"}, noteSpec{"A4", "1/4"}, noteSpec{"G4", "1/2"},
			noteSpec{"F4", "1/4"}, noteSpec{"F4", "1/4"}, noteSpec{"E4", "1/4"}, noteSpec{"E4", "1/4"},
			noteSpec{"D4", "1/4"}, noteSpec{"D4", "1/4"}, noteSpec{"C4", "1/2"},
		)
	},
	"mario_coin": func() Song {
		return build("Mario Coin", noteSpec{"B5", "1/16"}, noteSpec{"E6", "dotted 1/4"})
	},
}

// Preset returns the named preset song.
func Preset(name string) (Song, error) {
	ctor, ok := Presets[name]
	if !ok {
		return Song{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, PresetNames())
	}
	return ctor(), nil
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BionicBirdieName is the display name of the factory ringtone.
const BionicBirdieName = "Bionic Birdie"

var bionicBirdie = []byte{
	0x01, 0x01, 0x00, 0x00, 0x18, 0x01, 0x38, 0xEF, 0x1A, 0xF5, 0xFE, 0x3B, 0x48,
	0xB5, 0x2C, 0x9A, 0x53, 0xA3, 0x35, 0xAE, 0xFD, 0xB4, 0x7E, 0x59, 0xB2, 0x57,
	0x3A, 0xDE, 0x75, 0xDE, 0x09, 0x51, 0x43, 0x9F, 0x27, 0x3A, 0x18, 0x27, 0xDB,
	0x9B, 0xA2, 0xCF, 0x42, 0x4B, 0x67, 0x72, 0x11, 0xCE, 0xC4, 0xE8, 0xC9, 0xBF,
	0x33, 0xA7, 0x65, 0xFE, 0xE2, 0xDC, 0x16, 0xDA, 0x48, 0x44, 0x82, 0x59, 0xE4,
	0x54, 0xC4, 0x91, 0x7E, 0x4B, 0x70, 0x54, 0x45, 0x81, 0x77, 0x34, 0xF6, 0x68,
	0xBC, 0x6A, 0x66, 0xDF, 0x46, 0x04, 0xD4, 0x7B, 0x5E, 0x6D, 0xE4, 0x54, 0xFB,
	0x2D, 0x13, 0x9D, 0x4B, 0x5C, 0x77, 0xD9, 0x98, 0xF0, 0xA7, 0x63, 0x3F, 0x03,
	0x43, 0x03, 0x3F, 0x03, 0x43, 0x03, 0x3F, 0x03, 0x43, 0x03, 0x3F, 0x03, 0x43,
	0x03, 0x3F, 0x03, 0x43, 0x06, 0x00, 0x03, 0x4B, 0x0D, 0x43, 0x0D, 0x44, 0x0D,
	0x46, 0x0D, 0x4B, 0x09, 0x00, 0x04, 0x46, 0x06, 0x00, 0x06, 0x52, 0x06, 0x00,
	0x06, 0x46, 0x06, 0x00, 0x13, 0x4F, 0x03, 0x52, 0x03, 0x4F, 0x03, 0x52, 0x03,
	0x4F, 0x03, 0x52, 0x03, 0x4F, 0x03, 0x52, 0x03, 0x00, 0x06, 0x4B, 0x03, 0x4F,
	0x03, 0x4B, 0x03, 0x4F, 0x03, 0x4B, 0x03, 0x4F, 0x03, 0x00, 0x06, 0x44, 0x03,
	0x48, 0x03, 0x44, 0x03, 0x48, 0x03, 0x44, 0x03, 0x48, 0x03, 0x44, 0x03, 0x48,
	0x06, 0x00, 0x03, 0x50, 0x0D, 0x48, 0x0D, 0x49, 0x0D, 0x4B, 0x0D, 0x50, 0x09,
	0x00, 0x04, 0x4B, 0x06, 0x00, 0x06, 0x57, 0x06, 0x00, 0x06, 0x4B, 0x06, 0x00,
	0x13, 0x54, 0x03, 0x57, 0x03, 0x54, 0x03, 0x57, 0x03, 0x54, 0x03, 0x57, 0x03,
	0x54, 0x03, 0x57, 0x06, 0x00, 0x16, 0x46, 0x03, 0x4A, 0x03, 0x46, 0x03, 0x4A,
	0x03, 0x46, 0x03, 0x4A, 0x03, 0x46, 0x03, 0x4A, 0x06, 0x00, 0x03, 0x52, 0x0D,
	0x4A, 0x0D, 0x4B, 0x0D, 0x4D, 0x0D, 0x52, 0x09, 0x00, 0x04, 0x4D, 0x06, 0x00,
	0x06, 0x59, 0x06, 0x00, 0x06, 0x4D, 0x06, 0x00, 0x13, 0x56, 0x03, 0x59, 0x03,
	0x56, 0x03, 0x59, 0x03, 0x56, 0x03, 0x59, 0x03, 0x00, 0x06, 0x52, 0x03, 0x56,
	0x03, 0x52, 0x03, 0x56, 0x03, 0x52, 0x03, 0x56, 0x03, 0x00, 0x06, 0x4B, 0x03,
	0x4F, 0x03, 0x4B, 0x03, 0x4F, 0x03, 0x4B, 0x03, 0x4F, 0x03, 0x4B, 0x03, 0x4F,
	0x03, 0x4B, 0x03, 0x4F, 0x06, 0x00, 0x03, 0x57, 0x0D, 0x4F, 0x0D, 0x50, 0x0D,
	0x52, 0x0D, 0x57, 0x09, 0x00, 0x04, 0x52, 0x06, 0x00, 0x06, 0x5E, 0x06, 0x00,
	0x06, 0x52, 0x06, 0x00, 0x13, 0x5B, 0x03, 0x5E, 0x03, 0x5B, 0x03, 0x5E, 0x03,
	0x5B, 0x03, 0x5E, 0x03, 0x5B, 0x03, 0x5E, 0x06, 0x00, 0x0B, 0x00, 0x00, 0x00,
	0x00,
}

// BionicBirdie returns a copy of the pre-encoded factory ringtone blob.
func BionicBirdie() []byte {
	out := make([]byte, len(bionicBirdie))
	copy(out, bionicBirdie)
	return out
}
