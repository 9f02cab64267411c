package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/song"
)

type programFlags struct {
	preset       string
	notation     string
	savedSong    string
	hexBlob      string
	bionicBirdie bool
	dryRun       bool
	format       string
}

func newProgramCmd() *cobra.Command {
	f := &programFlags{}
	cmd := &cobra.Command{
		Use:   "program TAG",
		Short: "Upload a new ringtone to a Tile",
		Long: `Replace the ringtone stored on a Tile.

The song comes from exactly one source: a built-in preset, compact notation
("C4:1/8 | R:1/4 | G4:1/2"), a song saved with 'tilectl songs save', a raw
hex blob, or the factory Bionic Birdie tone. Unknown notes in notation become
rests and are reported as warnings.`,
		Example: `  tilectl program Keys --preset mario_coin
  tilectl program Keys --notation "E5:1/4 | C5:1/2"
  tilectl program Keys --bionic-birdie`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.preset, "preset", "", "Built-in preset ("+strings.Join(song.PresetNames(), ", ")+")")
	cmd.Flags().StringVar(&f.notation, "notation", "", "Compact song notation")
	cmd.Flags().StringVar(&f.savedSong, "song", "", "Saved song id or name")
	cmd.Flags().StringVar(&f.hexBlob, "hex", "", "Raw song blob as hex")
	cmd.Flags().BoolVar(&f.bionicBirdie, "bionic-birdie", false, "Restore the factory ringtone")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Encode and print the blob without connecting")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format (table, json)")
	return cmd
}

// songSource is the resolved upload: a display name and the encoded blob.
type songSource struct {
	name     string
	blob     []byte
	warnings []song.NotationWarning
}

func (f *programFlags) sources() int {
	n := 0
	for _, set := range []bool{f.preset != "", f.notation != "", f.savedSong != "", f.hexBlob != "", f.bionicBirdie} {
		if set {
			n++
		}
	}
	return n
}

func (a *app) loadSong(f *programFlags) (songSource, error) {
	switch {
	case f.preset != "":
		s, err := song.Preset(f.preset)
		if err != nil {
			return songSource{}, err
		}
		return songSource{name: s.Name, blob: song.Encode(s)}, nil

	case f.notation != "":
		s, warnings := song.FromNotation(f.notation, "Custom")
		if s.Len() == 0 {
			return songSource{}, fmt.Errorf("notation contains no notes")
		}
		return songSource{name: s.Name, blob: song.Encode(s), warnings: warnings}, nil

	case f.savedSong != "":
		lib, err := a.openLibrary()
		if err != nil {
			return songSource{}, err
		}
		e, err := lib.Get(f.savedSong)
		if err != nil {
			return songSource{}, err
		}
		return songSource{name: e.Name, blob: song.Encode(e.Song())}, nil

	case f.hexBlob != "":
		blob, err := decodeHex(f.hexBlob)
		if err != nil {
			return songSource{}, err
		}
		return songSource{name: "raw blob", blob: blob}, nil

	default:
		return songSource{name: song.BionicBirdieName, blob: song.BionicBirdie()}, nil
	}
}

// decodeHex accepts hex with optional spaces, colons and a 0x prefix.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid hex: empty blob")
	}
	return b, nil
}

func runProgram(cmd *cobra.Command, ref string, f *programFlags) error {
	if f.sources() != 1 {
		return ErrSongSource
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	src, err := a.loadSong(f)
	if err != nil {
		return err
	}
	for _, w := range src.warnings {
		fmt.Fprintf(a.out, "%s %s\n", a.colors.warn.Sprint("warning:"), w)
	}

	if f.dryRun {
		fmt.Fprintf(a.out, "%s (%d bytes)\n%s\n", src.name, len(src.blob), hex.EncodeToString(src.blob))
		return nil
	}

	tag, err := a.cfg.FindTag(ref)
	if err != nil {
		return err
	}
	svc, err := a.newService()
	if err != nil {
		return err
	}
	defer a.saveCache(svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = svc.ProgramSong(ctx, tag.Tag(), src.blob)
	o := outcome{Tag: tagLabel(tag), UUID: tag.UUID, err: err}
	if err != nil {
		o.Error = FormatUserError(err)
	} else {
		o.Result = fmt.Sprintf("programmed %q (%d bytes)", src.name, len(src.blob))
	}
	return a.report(f.format, []outcome{o})
}
