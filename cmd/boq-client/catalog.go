package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog DESCRIPTION",
		Short: "List vendor offers for a line-item description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			offers := catalog.Offers(args[0])
			if offers == nil {
				return fmt.Errorf("no material mapped to %q", args[0])
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "Vendor\tPrice\tUnit")
			for _, o := range offers {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\n", o.Vendor, o.Price, o.Unit)
			}
			return tw.Flush()
		},
	}
}
