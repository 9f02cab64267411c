package main

import (
	"encoding/hex"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/song"
)

func newSongCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Encode, decode and inspect song blobs offline",
	}
	cmd.AddCommand(newSongEncodeCmd(), newSongDecodeCmd(), newSongPresetsCmd(), newSongShowCmd())
	return cmd
}

func newSongEncodeCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "encode NOTATION",
		Short:   "Encode compact notation into a song blob",
		Example: `  tilectl song encode "C4:1/8 | R:1/4 | G4:1/2"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			s, warnings := song.FromNotation(args[0], name)
			for _, w := range warnings {
				fmt.Fprintf(a.out, "%s %s\n", a.colors.warn.Sprint("warning:"), w)
			}
			fmt.Fprintln(a.out, hex.EncodeToString(song.Encode(s)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Custom", "Song name")
	return cmd
}

func newSongDecodeCmd() *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode a song blob into notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			blob, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			s := song.Decode(blob, "Decoded")
			if compact {
				fmt.Fprintln(a.out, song.ToCompactNotation(s))
				return nil
			}
			fmt.Fprintln(a.out, a.colors.bold.Sprint(s))
			if s.Len() > 0 {
				fmt.Fprintln(a.out, song.ToNotation(s))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Print compact notation instead of a numbered listing")
	return cmd
}

func newSongPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tTITLE\tNOTES")
			for _, name := range song.PresetNames() {
				s, _ := song.Preset(name)
				fmt.Fprintf(w, "%s\t%s\t%d\n", name, s.Name, s.Len())
			}
			return w.Flush()
		},
	}
}

func newSongShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show PRESET",
		Short: "Print a preset as compact notation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			s, err := song.Preset(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, song.ToCompactNotation(s))
			return nil
		},
	}
}
