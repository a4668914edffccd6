package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// DefaultHeader is the column order written by SalesWorkbook.
var DefaultHeader = []string{"Retailer", "InvoiceDate", "Region", "State", "City", "TotalSales", "UnitsSold"}

// SalesRow is one fixture transaction. InvoiceDate may be a string, a
// float64 serial number or a time.Time.
type SalesRow struct {
	Retailer    string
	InvoiceDate any
	Region      string
	State       string
	City        string
	TotalSales  float64
	UnitsSold   int64
}

func (r SalesRow) values() []any {
	return []any{r.Retailer, r.InvoiceDate, r.Region, r.State, r.City, r.TotalSales, r.UnitsSold}
}

// SalesWorkbook builds in-memory xlsx fixtures.
type SalesWorkbook struct {
	sheet      string
	titles     []string
	header     []string
	rows       [][]any
	leadSheets []string
}

// NewSalesWorkbook returns a builder for a single-sheet workbook.
func NewSalesWorkbook() *SalesWorkbook {
	return &SalesWorkbook{
		sheet:  "Data Sales (Adidas)",
		header: DefaultHeader,
	}
}

// WithSheet renames the data sheet.
func (w *SalesWorkbook) WithSheet(name string) *SalesWorkbook {
	w.sheet = name
	return w
}

// WithLeadingSheet inserts an unrelated sheet before the data sheet.
func (w *SalesWorkbook) WithLeadingSheet(name string) *SalesWorkbook {
	w.leadSheets = append(w.leadSheets, name)
	return w
}

// WithTitleRows writes free text above the header.
func (w *SalesWorkbook) WithTitleRows(titles ...string) *SalesWorkbook {
	w.titles = append(w.titles, titles...)
	return w
}

// WithHeader overrides the header row.
func (w *SalesWorkbook) WithHeader(cols ...string) *SalesWorkbook {
	w.header = cols
	return w
}

// AddRow appends a transaction in DefaultHeader order.
func (w *SalesWorkbook) AddRow(rows ...SalesRow) *SalesWorkbook {
	for _, r := range rows {
		w.rows = append(w.rows, r.values())
	}
	return w
}

// AddRawRow appends cells as given.
func (w *SalesWorkbook) AddRawRow(cells ...any) *SalesWorkbook {
	w.rows = append(w.rows, cells)
	return w
}

// Bytes renders the workbook as xlsx.
func (w *SalesWorkbook) Bytes() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	first := w.sheet
	if len(w.leadSheets) > 0 {
		first = w.leadSheets[0]
	}
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return nil, err
	}
	for _, name := range w.leadSheets[min(1, len(w.leadSheets)):] {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	for _, name := range w.leadSheets {
		if err := f.SetCellValue(name, "A1", "notes"); err != nil {
			return nil, err
		}
	}
	if len(w.leadSheets) > 0 {
		if _, err := f.NewSheet(w.sheet); err != nil {
			return nil, err
		}
	}

	row := 1
	for _, title := range w.titles {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(w.sheet, cell, title); err != nil {
			return nil, err
		}
		row++
	}

	header := make([]any, len(w.header))
	for i, h := range w.header {
		header[i] = h
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(w.sheet, cell, &header); err != nil {
		return nil, err
	}
	row++

	for _, values := range w.rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		cells := values
		if err := f.SetSheetRow(w.sheet, cell, &cells); err != nil {
			return nil, err
		}
		row++
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustBytes is Bytes for tests.
func (w *SalesWorkbook) MustBytes(t testing.TB) []byte {
	t.Helper()
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	return data
}

// WriteFile renders the workbook into dir and returns its path.
func (w *SalesWorkbook) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, w.MustBytes(t), 0o644); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return path
}
