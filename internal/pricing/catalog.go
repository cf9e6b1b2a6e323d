package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cuongbtq/boq-ai/shared/schema"
)

// VendorOffer is one vendor's price for a material.
type VendorOffer struct {
	Vendor string  `json:"vendor"`
	Price  float64 `json:"price"`
	Unit   string  `json:"unit"`
}

// Catalog maps line-item descriptions to material types and material types
// to vendor offers. It is read-only once loaded.
type Catalog struct {
	ItemToMaterial map[string]string        `json:"item_to_material_map"`
	Materials      map[string][]VendorOffer `json:"materials"`
}

var catalogSchema = schema.MustCompile("vendor-catalog.json", map[string]any{
	"type":     "object",
	"required": []string{"item_to_material_map", "materials"},
	"properties": map[string]any{
		"item_to_material_map": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"materials": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"vendor", "price"},
					"properties": map[string]any{
						"vendor": map[string]any{"type": "string", "minLength": 1},
						"price":  map[string]any{"type": "number", "minimum": 0},
						"unit":   map[string]any{"type": "string"},
					},
				},
			},
		},
	},
})

// ParseCatalog validates and decodes a vendor catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	if err := catalogSchema.Validate(data); err != nil {
		return nil, fmt.Errorf("invalid vendor catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding vendor catalog: %w", err)
	}
	return &c, nil
}

// LoadCatalog reads a catalog from a file path or an http(s) URL.
func LoadCatalog(ctx context.Context, source string, httpClient *http.Client) (*Catalog, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchCatalog(ctx, source, httpClient)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor catalog: %w", err)
	}
	return ParseCatalog(data)
}

func fetchCatalog(ctx context.Context, url string, httpClient *http.Client) (*Catalog, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating catalog request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching vendor catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching vendor catalog: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading vendor catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Offers returns the vendor offers for a line-item description, or nil when
// the description has no material mapping.
func (c *Catalog) Offers(description string) []VendorOffer {
	if c == nil {
		return nil
	}
	material, ok := c.ItemToMaterial[description]
	if !ok {
		return nil
	}
	return c.Materials[material]
}
