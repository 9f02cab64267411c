package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/tilectl/scanner"
)

type scanFlags struct {
	duration  time.Duration
	format    string
	all       bool
	allowList []string
	blockList []string
	watch     bool
	rounds    int
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for nearby Tiles",
		Long: `Scan for Bluetooth devices and list the Tiles among them, strongest signal first.

A device counts as a Tile when it advertises the FEED or FEEC service, carries
service data under either, or is named "Tile". Use --all to list every device.

With --watch the scan repeats and prints devices as they appear or change
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, f)
		},
	}
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 0, "Scan duration (default from config)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format (table, json)")
	cmd.Flags().BoolVarP(&f.all, "all", "a", false, "List all devices, not only Tiles")
	cmd.Flags().StringSliceVar(&f.allowList, "allow", nil, "Only show devices with these addresses")
	cmd.Flags().StringSliceVar(&f.blockList, "block", nil, "Hide devices with these addresses")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Keep scanning and print changes")
	cmd.Flags().IntVar(&f.rounds, "rounds", 0, "With --watch, stop after this many scans (0 = until interrupted)")
	return cmd
}

// scanRow is the output shape of one device.
type scanRow struct {
	Address  string    `json:"address"`
	Name     string    `json:"name"`
	RSSI     int       `json:"rssi"`
	Tile     bool      `json:"tile"`
	Services []string  `json:"services,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

func toRow(e scanner.Entry) scanRow {
	return scanRow{
		Address:  e.Address,
		Name:     e.Name,
		RSSI:     e.RSSI,
		Tile:     e.IsTile,
		Services: e.Services,
		LastSeen: e.LastSeen,
	}
}

func runScan(cmd *cobra.Command, f *scanFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	format := f.format
	if format == "" {
		format = a.cfg.OutputFormat
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = a.cfg.ScanTimeout
	if f.duration > 0 {
		opts.Duration = f.duration
	}
	opts.TilesOnly = !f.all
	opts.AllowList = f.allowList
	opts.BlockList = f.blockList

	s, err := a.newScanner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.watch {
		return runWatch(ctx, a, s, opts, f.rounds)
	}

	var progress scanner.ProgressCallback
	if isTerminal(a.out) {
		p := NewProgressPrinter(a.out, "Scanning for Tiles", "Scanning", opts.Duration, "Processing results")
		p.Start()
		defer p.Stop()
		progress = p.Callback()
	}

	entries, err := s.Scan(ctx, opts, progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.WithError(err).Error("scan failed")
		return err
	}

	rows := make([]scanRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRow(e))
	}
	if format == "json" {
		return writeJSON(a.out, rows)
	}
	return a.writeScanTable(rows, time.Now())
}

// runWatch repeats the scan and prints a device the first time it is seen and
// whenever its name or signal changes.
func runWatch(ctx context.Context, a *app, s *scanner.Scanner, opts *scanner.ScanOptions, rounds int) error {
	what := "devices"
	if opts.TilesOnly {
		what = "Tiles"
	}
	fmt.Fprintf(a.out, "Watching for %s, press Ctrl+C to stop\n", what)

	known := make(map[string]scanner.Entry)
	for round := 1; rounds == 0 || round <= rounds; round++ {
		if _, err := s.Scan(ctx, opts, nil); err != nil {
			return err
		}
		for _, ev := range s.DrainEvents() {
			e := ev.Entry
			prev, seen := known[e.Address]
			known[e.Address] = e
			switch {
			case !seen:
				a.writeEvent("+", a.colors.ok, e)
			case prev.RSSI != e.RSSI || prev.Name != e.Name:
				a.writeEvent("~", a.colors.dim, e)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (a *app) writeEvent(mark string, c *color.Color, e scanner.Entry) {
	fmt.Fprintf(a.out, "%s %s  %-20s %4d dBm  %s\n",
		c.Sprint(mark), e.Address, displayName(e.Name), e.RSSI, e.LastSeen.Format(time.TimeOnly))
}

func (a *app) writeScanTable(rows []scanRow, now time.Time) error {
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No Tiles found")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tRSSI\tTILE\tSERVICES\tLAST SEEN")
	for _, r := range rows {
		tile := "no"
		if r.Tile {
			tile = "yes"
		}
		services := strings.Join(r.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s ago\n",
			r.Address, displayName(r.Name), a.rssi(r.RSSI), tile, services,
			now.Sub(r.LastSeen).Truncate(time.Second))
	}
	return w.Flush()
}

// rssi colors signal strength: green is close, red is at the edge of range.
func (a *app) rssi(v int) string {
	s := fmt.Sprintf("%d dBm", v)
	switch {
	case v >= -60:
		return a.colors.ok.Sprint(s)
	case v >= -80:
		return a.colors.warn.Sprint(s)
	default:
		return a.colors.fail.Sprint(s)
	}
}

func displayName(name string) string {
	if name == "" {
		return "-"
	}
	if len(name) > 20 {
		return name[:17] + "..."
	}
	return name
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
