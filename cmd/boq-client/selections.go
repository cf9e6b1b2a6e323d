package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/boq-ai/internal/pricing"
)

// priceInput is the user's price choices before they meet a job's line items
type priceInput struct {
	manual  map[int]float64
	vendors map[int]string
}

// loadPriceInput reads a YAML {index: price} file and index=vendor pairs
func loadPriceInput(pricesPath string, vendorPairs []string) (priceInput, error) {
	in := priceInput{manual: map[int]float64{}, vendors: map[int]string{}}

	if pricesPath != "" {
		data, err := os.ReadFile(pricesPath)
		if err != nil {
			return in, fmt.Errorf("reading prices file: %w", err)
		}
		if err := yaml.Unmarshal(data, &in.manual); err != nil {
			return in, fmt.Errorf("parsing prices file: %w", err)
		}
	}

	for _, pair := range vendorPairs {
		idx, vendor, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(vendor) == "" {
			return in, fmt.Errorf("invalid --vendor %q: want index=vendor", pair)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 0 {
			return in, fmt.Errorf("invalid --vendor %q: index must be a non-negative integer", pair)
		}
		in.vendors[i] = strings.TrimSpace(vendor)
	}
	return in, nil
}

// selectionsFor applies the input to one job. Manual prices are applied
// first; a vendor choice for the same line replaces it.
func (in priceInput) selectionsFor(items int, offers func(i int) []pricing.VendorOffer) (pricing.Selections, error) {
	sel := pricing.Selections{}
	for i, price := range in.manual {
		if i < 0 || i >= items {
			return nil, fmt.Errorf("price for line %d: no such line (job has %d)", i, items)
		}
		if err := sel.Set(i, price); err != nil {
			return nil, err
		}
	}
	for i, vendor := range in.vendors {
		if i >= items {
			return nil, fmt.Errorf("vendor for line %d: no such line (job has %d)", i, items)
		}
		if err := sel.Choose(i, offers(i), vendor); err != nil {
			return nil, err
		}
	}
	return sel, nil
}
