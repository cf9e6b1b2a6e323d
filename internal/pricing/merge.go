package pricing

import "github.com/cuongbtq/boq-ai/internal/boq/domain"

// PricedLineItem is a line item combined with its effective unit price.
type PricedLineItem struct {
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	LineCost    float64
	// Offers is nil when the description is not in the catalog.
	Offers []VendorOffer
}

// Breakdown is the priced result of one finished job.
type Breakdown struct {
	Items []PricedLineItem
	Total float64
}

// Merge prices each line item with selections[i] (0 when absent) and sums the
// line costs. It has no side effects and is meant to be re-run on every
// selection change.
func Merge(items []domain.LineItem, catalog *Catalog, selections Selections) Breakdown {
	out := Breakdown{Items: make([]PricedLineItem, len(items))}
	for i, item := range items {
		price := selections.Price(i)
		cost := item.Quantity * price
		out.Items[i] = PricedLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   price,
			LineCost:    cost,
			Offers:      catalog.Offers(item.Description),
		}
		out.Total += cost
	}
	return out
}
