package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the tag resolution cache",
		Long: `tilectl remembers which Bluetooth address each tag resolved to and the result
of the last Tile scan, so repeated commands skip scanning while the entries are
fresh (mappings for mapping_ttl, scan results for scan_ttl).`,
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var (
		format  string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			if refresh {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				if _, err := svc.Scan(ctx, 0, true); err != nil {
					return err
				}
				a.saveCache(svc)
			}

			st := svc.CacheStats()
			if format == "" {
				format = a.cfg.OutputFormat
			}
			if format == "json" {
				return writeJSON(a.out, st)
			}

			last := "never"
			if st.LastScan != nil {
				last = fmt.Sprintf("%s (%s ago)", st.LastScan.Local().Format(time.DateTime), time.Since(*st.LastScan).Truncate(time.Second))
			}
			stale := a.colors.ok.Sprint("no")
			if st.Stale {
				stale = a.colors.warn.Sprint("yes")
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "UUID mappings:\t%d\n", st.Mappings)
			fmt.Fprintf(w, "Cached devices:\t%d\n", st.CachedDevices)
			fmt.Fprintf(w, "Discovered Tiles:\t%d\n", st.DiscoveredTiles)
			fmt.Fprintf(w, "Last scan:\t%s\n", last)
			fmt.Fprintf(w, "Scan stale:\t%s\n", stale)
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Scan for Tiles before reporting")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget cached mappings and scan results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			svc.ClearCache()
			if err := removeCacheSnapshot(a.cachePath()); err != nil {
				return fmt.Errorf("failed to remove cache file: %w", err)
			}
			fmt.Fprintln(a.out, "Cache cleared")
			return nil
		},
	}
}
