package client

import (
	"bytes"
	"encoding/json"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/shared/schema"
)

var resultSchema = schema.MustCompile("boq-result.json", map[string]any{
	"type":     "object",
	"required": []string{"items"},
	"properties": map[string]any{
		"file": map[string]any{"type": "string"},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"description", "quantity", "unit"},
				"properties": map[string]any{
					"item_code":   map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"quantity":    map[string]any{"type": "number", "minimum": 0},
					"unit":        map[string]any{"type": "string"},
				},
			},
		},
	},
})

// decodeResult validates and decodes the result of a finished job. A missing
// or malformed result is a FormatError, never an empty success.
func decodeResult(raw json.RawMessage) (*domain.Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &domain.FormatError{Field: "result.items"}
	}
	if err := resultSchema.Validate(raw); err != nil {
		return nil, &domain.FormatError{Field: "result.items", Detail: err.Error()}
	}

	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &domain.FormatError{Field: "result.items", Detail: err.Error()}
	}
	return &result, nil
}
