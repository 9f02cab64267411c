package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tilectl",
		Short: "Ring and reprogram Tile trackers over Bluetooth",
		Long: `Talk to Tile Bluetooth trackers directly, without the Tile cloud:

- Scan for nearby Tiles
- Ring one or more tags at a chosen volume and duration
- Upload a new ringtone from a preset, compact notation, a saved song or raw hex
- Encode and decode Tile song blobs offline

Tags and their auth keys are read from the config file (see --config).`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default "+defaultConfigHint()+")")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolP("verbose", "V", false, "Verbose output (same as --log-level debug)")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.Flags().BoolP("version", "v", false, "Show version information")

	root.AddCommand(
		newScanCmd(),
		newRingCmd(),
		newProgramCmd(),
		newInspectCmd(),
		newSongCmd(),
		newSongsCmd(),
		newTagsCmd(),
		newCacheCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
