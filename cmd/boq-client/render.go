package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cuongbtq/boq-ai/internal/pricing"
)

// renderBreakdown prints one priced job as an aligned table
func renderBreakdown(w io.Writer, title string, b pricing.Breakdown) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDescription\tQuantity\tUnit\tUnit Price\tLine Cost\tVendors\t")
	for i, it := range b.Items {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%.2f\t%.2f\t%s\t\n",
			i, it.Description, it.Quantity, it.Unit, it.UnitPrice, it.LineCost, vendorList(it.Offers))
	}
	fmt.Fprintf(tw, "\t\t\t\tTotal\t%.2f\t\t\n", b.Total)
	return tw.Flush()
}

func vendorList(offers []pricing.VendorOffer) string {
	if offers == nil {
		return "-"
	}
	parts := make([]string, len(offers))
	for i, o := range offers {
		parts[i] = fmt.Sprintf("%s %.2f", o.Vendor, o.Price)
	}
	return strings.Join(parts, ", ")
}
