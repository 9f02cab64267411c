package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/groutine"
	"github.com/srg/tilectl/internal/tilesvc"
	"github.com/srg/tilectl/internal/toa"
	"github.com/srg/tilectl/pkg/config"
)

type ringFlags struct {
	all      bool
	volume   string
	duration int
	songID   uint8
	format   string
}

func newRingCmd() *cobra.Command {
	f := &ringFlags{}
	cmd := &cobra.Command{
		Use:   "ring [TAG...]",
		Short: "Ring one or more Tiles",
		Long: `Ring Tiles by name, uuid or uuid prefix as listed in the config file.

Several tags ring in parallel. A ring whose acknowledgement never arrives is
still reported as sent: Tiles often play without answering.`,
		Example: `  tilectl ring Keys
  tilectl ring Keys Wallet --volume high --duration 10
  tilectl ring --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRing(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.all, "all", false, "Ring every configured tag")
	cmd.Flags().StringVar(&f.volume, "volume", "med", "Volume (low, med, high, auto)")
	cmd.Flags().IntVarP(&f.duration, "duration", "d", toa.DefaultRingDuration, "Ring duration in seconds (1-30)")
	cmd.Flags().Uint8Var(&f.songID, "song-id", 0, "Song slot to play (0 = selected song)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format (table, json)")
	return cmd
}

// outcome is the per-tag result of a command run on several tags.
type outcome struct {
	Tag    string `json:"tag"`
	UUID   string `json:"uuid"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	err error
}

func runRing(cmd *cobra.Command, args []string, f *ringFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	tags, err := a.resolveTags(args, f.all)
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

	opts := tilesvc.RingOptions{
		Volume:   toa.ParseVolume(f.volume),
		Duration: f.duration,
		SongID:   f.songID,
	}
	outcomes := ringAll(ctx, svc, tags, opts)

	return a.report(f.format, outcomes)
}

// ringAll rings every tag concurrently; outcomes keep the order of tags.
func ringAll(ctx context.Context, svc *tilesvc.Service, tags []config.TagConfig, opts tilesvc.RingOptions) []outcome {
	results := make([]toa.RingResult, len(tags))
	g := groutine.NewGroup(ctx)
	for i, t := range tags {
		g.Go("tile-ring-"+t.UUID, func(ctx context.Context) error {
			r, err := svc.Ring(ctx, t.Tag(), opts)
			results[i] = r
			return err
		})
	}
	errs := g.Wait()

	outcomes := make([]outcome, len(tags))
	for i, t := range tags {
		o := outcome{Tag: tagLabel(t), UUID: t.UUID, err: errs[i]}
		if errs[i] != nil {
			o.Error = FormatUserError(errs[i])
		} else {
			o.Result = results[i].String()
		}
		outcomes[i] = o
	}
	return outcomes
}

func tagLabel(t config.TagConfig) string {
	if t.Name != "" {
		return t.Name
	}
	return t.UUID
}

// report prints per-tag outcomes and turns failures into the command error.
// A single failed tag returns its own error so the message stays specific.
func (a *app) report(format string, outcomes []outcome) error {
	if format == "" {
		format = a.cfg.OutputFormat
	}
	if format == "json" {
		if err := writeJSON(a.out, outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.err != nil {
				fmt.Fprintf(a.out, "%s %s: %s\n", a.colors.fail.Sprint("✗"), o.Tag, o.Error)
				continue
			}
			fmt.Fprintf(a.out, "%s %s: %s\n", a.colors.ok.Sprint("✓"), o.Tag, o.Result)
		}
	}

	var failed []error
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o.err)
		}
	}
	switch {
	case len(failed) == 0:
		return nil
	case len(outcomes) == 1:
		return failed[0]
	default:
		return fmt.Errorf("%w: %d of %d tags", ErrSomeFailures, len(failed), len(outcomes))
	}
}
