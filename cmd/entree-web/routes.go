package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/entreepos/entree-web/internal/router"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the page routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := router.DefaultTable()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tVIEW\tLAYOUT")
		for _, r := range table.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Pattern, r.View.Name, table.Layout().Name)
		}
		return w.Flush()
	},
}
