package pricing

import (
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrNegativePrice is returned when a manual price below zero is entered
	ErrNegativePrice = errors.New("unit price must not be negative")

	// ErrUnknownVendor is returned when a vendor is not offered for the line
	ErrUnknownVendor = errors.New("vendor not offered for this item")
)

// Selections maps a line-item index to the chosen unit price. A missing
// entry means a price of 0.
type Selections map[int]float64

// Price returns the selected price for line i, or 0.
func (s Selections) Price(i int) float64 {
	return s[i]
}

// Set records a manually entered price for line i.
func (s Selections) Set(i int, price float64) error {
	if price < 0 {
		return fmt.Errorf("line %d: %w", i, ErrNegativePrice)
	}
	s[i] = price
	return nil
}

// Choose records the price of the named vendor's offer for line i.
func (s Selections) Choose(i int, offers []VendorOffer, vendor string) error {
	for _, o := range offers {
		if o.Vendor == vendor {
			s[i] = o.Price
			return nil
		}
	}
	return fmt.Errorf("line %d, vendor %q: %w", i, vendor, ErrUnknownVendor)
}

// Clear removes the selection for line i.
func (s Selections) Clear(i int) {
	delete(s, i)
}

// Clone returns an independent copy.
func (s Selections) Clone() Selections {
	if s == nil {
		return Selections{}
	}
	return maps.Clone(s)
}
