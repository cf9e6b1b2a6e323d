package workbook

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the priced bill of quantities.
const SheetName = "BoQ"

// ContentType is the media type of a generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Description", "Quantity", "Unit", "Unit Price", "Line Cost"}

// ErrNoRows is returned when there is nothing to write.
var ErrNoRows = errors.New("no BoQ items provided")

// Row is one priced line of the sheet.
type Row struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unitPrice"`
}

// LineCost is quantity times unit price.
func (r Row) LineCost() float64 {
	return r.Quantity * r.UnitPrice
}

// Build renders rows into an XLSX workbook followed by a total row.
func Build(rows []Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	total := 0.0
	line := 2
	for _, r := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, r.Description)
		write(2, r.Quantity)
		write(3, r.Unit)
		write(4, r.UnitPrice)
		write(5, r.LineCost())
		total += r.LineCost()
		line++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(4, line)
	totalCell, _ := excelize.CoordinatesToCellName(5, line)
	_ = f.SetCellValue(SheetName, totalLabel, "Total")
	_ = f.SetCellValue(SheetName, totalCell, total)

	_ = f.SetColWidth(SheetName, "A", "A", 40)
	_ = f.SetColWidth(SheetName, "B", "B", 12)
	_ = f.SetColWidth(SheetName, "C", "C", 10)
	_ = f.SetColWidth(SheetName, "D", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Sheet is a workbook read back from bytes.
type Sheet struct {
	Rows  []Row
	Total float64
}

// Read parses a workbook produced by Build.
func Read(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer f.Close()

	cells, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", SheetName, err)
	}
	if len(cells) < 2 {
		return nil, fmt.Errorf("sheet %s has no data rows", SheetName)
	}

	out := &Sheet{}
	for n, c := range cells[1:] {
		line := n + 2
		if len(c) >= 5 && c[0] == "" && c[3] == "Total" {
			out.Total, err = strconv.ParseFloat(c[4], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: total: %w", line, err)
			}
			continue
		}
		if len(c) < 4 {
			return nil, fmt.Errorf("row %d: expected at least 4 columns, got %d", line, len(c))
		}
		qty, err := strconv.ParseFloat(c[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: quantity: %w", line, err)
		}
		price, err := strconv.ParseFloat(c[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: unit price: %w", line, err)
		}
		out.Rows = append(out.Rows, Row{Description: c[0], Quantity: qty, Unit: c[2], UnitPrice: price})
	}
	return out, nil
}
