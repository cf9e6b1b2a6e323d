package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"strings"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/pricing"
)

// DefaultFileName is used when the response does not name the file.
const DefaultFileName = "boq_with_costing.xlsx"

// Generator produces a spreadsheet from priced rows.
type Generator interface {
	GenerateExcel(ctx context.Context, items []client.ExportItem) (client.RawResponse, error)
}

// Requester sends priced items to the generation endpoint and saves the
// returned spreadsheet.
type Requester struct {
	generator Generator
	saver     Saver
	logger    *slog.Logger
}

// NewRequester creates a Requester.
func NewRequester(generator Generator, saver Saver, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{generator: generator, saver: saver, logger: logger}
}

// Export requests the spreadsheet and saves it. A JSON response is an error
// even with a success status; its message is returned as a ServerError.
func (r *Requester) Export(ctx context.Context, items []pricing.PricedLineItem) (string, error) {
	rows := make([]client.ExportItem, len(items))
	for i, it := range items {
		rows[i] = client.ExportItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
		}
	}

	resp, err := r.generator.GenerateExcel(ctx, rows)
	if err != nil {
		return "", err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	switch {
	case isJSON(mediaType):
		return "", jsonError(resp)
	case isSpreadsheet(mediaType):
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", &domain.ServerError{StatusCode: resp.StatusCode}
		}
		path, err := r.saver.Save(fileName(resp.ContentDisposition), resp.Body)
		if err != nil {
			return "", err
		}
		r.logger.Info("Spreadsheet saved",
			slog.String("path", path),
			slog.Int("rows", len(rows)),
			slog.Int("bytes", len(resp.Body)),
		)
		return path, nil
	default:
		return "", &domain.ExportFormatError{ContentType: resp.ContentType}
	}
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isSpreadsheet(mediaType string) bool {
	return strings.Contains(mediaType, "spreadsheetml") || mediaType == "application/vnd.ms-excel"
}

func jsonError(resp client.RawResponse) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Error == "" {
		return &domain.ServerError{StatusCode: resp.StatusCode, Message: "The server returned an unspecified error."}
	}
	return &domain.ServerError{StatusCode: resp.StatusCode, Message: body.Error}
}

func fileName(disposition string) string {
	if disposition == "" {
		return DefaultFileName
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return DefaultFileName
	}
	return params["filename"]
}
