package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/toa"
)

func newTagsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.OutputFormat
			}
			if format == "json" {
				return writeJSON(a.out, a.cfg.Tags)
			}
			if len(a.cfg.Tags) == 0 {
				fmt.Fprintf(a.out, "No tags configured in %s\n", a.cfg.Path())
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUUID\tPRODUCT\tAUTH KEY")
			for _, t := range a.cfg.Tags {
				key := a.colors.ok.Sprint("ok")
				if _, err := toa.DecodeAuthKey(t.AuthKey); err != nil {
					key = a.colors.fail.Sprint("missing")
				}
				product := t.Product
				if product == "" {
					product = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tagLabel(t), t.UUID, product, key)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	return cmd
}
