package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Attendance"

// XLSXExporter renders a dataset into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Exporter.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Exporter.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the optional title on row 1, headers below it, then the rows.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(xlsxSheet, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		row = 3
	}

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(xlsxSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(xlsxSheet, col, col, 20)
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
	if err := f.SetCellStyle(xlsxSheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for _, values := range data.Rows {
		row++
		for i, value := range data.record(values) {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(xlsxSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
