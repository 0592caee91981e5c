package export

import (
	"errors"
	"strings"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown formats.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Exporter renders a dataset into a downloadable document.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the exporter for csv, pdf or xlsx.
func ForFormat(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(), nil
	case "xlsx":
		return NewXLSXExporter(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
