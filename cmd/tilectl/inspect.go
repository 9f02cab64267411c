package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect TAG",
		Short: "Show device information reported by a Tile",
		Long: `Connects to a Tile, authenticates and prints what it reports about itself:
tile id, firmware, model and hardware revision, plus the negotiated channel.
Nothing on the Tile is changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			tag, err := a.cfg.FindTag(args[0])
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

			var progress *ProgressPrinter
			if isTerminal(a.out) {
				progress = NewProgressPrinter(a.out, "Inspecting "+tagLabel(tag), "Connecting", 0, "Done")
				progress.Start()
			}
			details, err := svc.Inspect(ctx, tag.Tag())
			if progress != nil {
				progress.Stop()
			}
			if err != nil {
				return err
			}

			if format == "" {
				format = a.cfg.OutputFormat
			}
			if format == "json" {
				return writeJSON(a.out, details)
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Tag:\t%s\n", a.colors.bold.Sprint(tagLabel(tag)))
			fmt.Fprintf(w, "Address:\t%s\n", details.Address)
			fmt.Fprintf(w, "Tile ID:\t%s\n", orDash(details.TileID))
			fmt.Fprintf(w, "Firmware:\t%s\n", orDash(details.Firmware))
			fmt.Fprintf(w, "Model:\t%s\n", orDash(details.Model))
			fmt.Fprintf(w, "Hardware:\t%s\n", orDash(details.Hardware))
			fmt.Fprintf(w, "Channel:\t%d\n", details.Channel)
			fmt.Fprintf(w, "Max payload:\t%d\n", details.MaxPayload)
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
