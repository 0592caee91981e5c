package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "A1 2025-01-14",
		Headers: []string{"Student", "Status", "Notes"},
		Rows: []map[string]string{
			{"Student": "Ada Lovelace", "Status": "PRESENT"},
			{"Student": "Grace Hopper", "Status": "LATE", "Notes": "bus, again"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Student,Status,Notes\nAda Lovelace,PRESENT,\nGrace Hopper,LATE,\"bus, again\"\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(xlsxSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1 2025-01-14", title)
	header, err := f.GetCellValue(xlsxSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Status", header)
	notes, err := f.GetCellValue(xlsxSheet, "C5")
	require.NoError(t, err)
	assert.Equal(t, "bus, again", notes)
}

func TestRenderRequiresHeaders(t *testing.T) {
	for _, format := range []string{"csv", "pdf", "xlsx"} {
		exporter, err := ForFormat(format)
		require.NoError(t, err)
		_, err = exporter.Render(Dataset{})
		assert.Error(t, err, format)
	}
}

func TestForFormat(t *testing.T) {
	exporter, err := ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, "csv", exporter.Extension())

	exporter, err = ForFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", exporter.Extension())

	_, err = ForFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
