package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/song"
)

func newSongsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "Manage the saved song library",
		Long: `Keep composed songs in a library file so they can be programmed by name or id
with 'tilectl program TAG --song REF'. The file lives next to the config unless
song_library is set.`,
	}
	cmd.AddCommand(newSongsSaveCmd(), newSongsListCmd(), newSongsShowCmd(), newSongsRenameCmd(), newSongsDeleteCmd())
	return cmd
}

func newSongsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "save NAME NOTATION",
		Short:   "Save a song",
		Example: `  tilectl songs save Doorbell "E5:1/4 | C5:1/2"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			e, warnings, err := lib.Save(args[0], args[1])
			for _, w := range warnings {
				fmt.Fprintf(a.out, "%s %s\n", a.colors.warn.Sprint("warning:"), w)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %q as %s (%d notes)\n", e.Name, e.ID, e.Notes)
			return nil
		},
	}
}

func newSongsListCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			entries := lib.List()
			if format == "" {
				format = a.cfg.OutputFormat
			}
			if format == "json" {
				return writeJSON(a.out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No saved songs")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tNOTES\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Name, e.Notes, e.Updated.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	return cmd
}

func newSongsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show REF",
		Short: "Print a saved song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n%s\n", a.colors.bold.Sprint(e.Name), a.colors.dim.Sprint(e.ID), e.Notation)
			fmt.Fprintln(a.out, song.ToNotation(e.Song()))
			return nil
		},
	}
}

func newSongsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename REF NAME",
		Short: "Rename a saved song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Rename(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %q\n", e.ID, e.Name)
			return nil
		},
	}
}

func newSongsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete REF",
		Aliases: []string{"rm"},
		Short:   "Delete a saved song",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Delete(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %q (%s)\n", e.Name, e.ID)
			return nil
		},
	}
}
