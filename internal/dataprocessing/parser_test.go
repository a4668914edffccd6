package dataprocessing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/shared/testutil"
	"salesdash/pkg/contracts/domain"
)

func parseWorkbook(t *testing.T, wb *testutil.SalesWorkbook, sheetName string) (*domain.SalesTable, error) {
	t.Helper()
	sheets, err := ReadWorkbook(bytes.NewReader(wb.MustBytes(t)), sheetName)
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)
	return NewParser(logger).Parse(context.Background(), "fixture.xlsx", sheets)
}

func TestParser_Parse(t *testing.T) {
	jan5 := time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)

	wb := testutil.NewSalesWorkbook().
		WithTitleRows("Adidas US Sales Datasets", "").
		AddRow(
			testutil.SalesRow{Retailer: "Foot Locker", InvoiceDate: jan5, Region: "Northeast", State: "New York", City: "New York", TotalSales: 600000, UnitsSold: 1200},
			testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "2023-01-06", Region: "South", State: "Texas", City: "Houston", TotalSales: 75.5, UnitsSold: 5},
		).
		AddRawRow().
		AddRow(testutil.SalesRow{Retailer: "Amazon", InvoiceDate: 44932.0, Region: "West", State: "California", City: "San Francisco", TotalSales: 10, UnitsSold: 1})

	table, err := parseWorkbook(t, wb, "")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	rows := table.Rows()
	assert.Equal(t, "Foot Locker", rows[0].Retailer)
	assert.True(t, jan5.Equal(rows[0].InvoiceDate), "time cell decodes from serial")
	assert.True(t, rows[0].TotalSales.Equal(decimal.NewFromInt(600000)))
	assert.Equal(t, int64(1200), rows[0].UnitsSold)

	assert.True(t, time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC).Equal(rows[1].InvoiceDate), "text date")
	assert.True(t, rows[1].TotalSales.Equal(decimal.RequireFromString("75.5")))

	assert.Equal(t, "Amazon", rows[2].Retailer, "blank row skipped")
	assert.True(t, time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC).Equal(rows[2].InvoiceDate), "numeric serial")

	for _, col := range domain.RequiredColumns {
		assert.True(t, table.HasColumn(col), col)
	}
	assert.Equal(t, "fixture.xlsx", table.Source())
}

func TestParser_SheetSelection(t *testing.T) {
	wb := testutil.NewSalesWorkbook().
		WithLeadingSheet("Cover").
		WithSheet("Data").
		AddRow(testutil.SalesRow{Retailer: "Kohl's", InvoiceDate: "2021-03-01", Region: "Midwest", State: "Ohio", City: "Columbus", TotalSales: 1, UnitsSold: 1})

	t.Run("first sheet with header wins", func(t *testing.T) {
		table, err := parseWorkbook(t, wb, "")
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("named sheet without header", func(t *testing.T) {
		_, err := parseWorkbook(t, wb, "Cover")
		require.Error(t, err)
		assert.True(t, apperrors.IsLoadError(err))
	})

	t.Run("named sheet missing", func(t *testing.T) {
		_, err := ReadWorkbook(bytes.NewReader(wb.MustBytes(t)), "Nope")
		require.Error(t, err)
	})
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name      string
		wb        *testutil.SalesWorkbook
		checkErr  func(t *testing.T, err error)
	}{
		{
			name: "missing column",
			wb: testutil.NewSalesWorkbook().
				WithHeader("Retailer", "InvoiceDate", "Region", "State", "City", "TotalSales").
				AddRawRow("Walmart", "2023-01-01", "South", "Texas", "Houston", 10),
			checkErr: func(t *testing.T, err error) {
				require.True(t, apperrors.IsLoadError(err))
				assert.Contains(t, err.Error(), "UnitsSold")
			},
		},
		{
			name: "header names are case sensitive",
			wb: testutil.NewSalesWorkbook().
				WithHeader("retailer", "InvoiceDate", "Region", "State", "City", "TotalSales", "UnitsSold"),
			checkErr: func(t *testing.T, err error) {
				require.True(t, apperrors.IsLoadError(err))
				assert.Contains(t, err.Error(), "Retailer")
			},
		},
		{
			name: "bad invoice date",
			wb: testutil.NewSalesWorkbook().
				AddRow(
					testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "2023-01-01", Region: "South", State: "Texas", City: "Houston", TotalSales: 1, UnitsSold: 1},
					testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "someday", Region: "South", State: "Texas", City: "Houston", TotalSales: 1, UnitsSold: 1},
				),
			checkErr: func(t *testing.T, err error) {
				require.True(t, apperrors.IsDateParseError(err))
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, 3, appErr.Context["row"])
				assert.Equal(t, "someday", appErr.Context["value"])
			},
		},
		{
			name: "empty invoice date",
			wb: testutil.NewSalesWorkbook().
				AddRawRow("Walmart", "", "South", "Texas", "Houston", 1, 1),
			checkErr: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsDateParseError(err))
			},
		},
		{
			name: "non numeric sales",
			wb: testutil.NewSalesWorkbook().
				AddRawRow("Walmart", "2023-01-01", "South", "Texas", "Houston", "lots", 1),
			checkErr: func(t *testing.T, err error) {
				require.True(t, apperrors.IsLoadError(err))
				assert.Contains(t, err.Error(), "TotalSales")
			},
		},
		{
			name: "fractional units",
			wb: testutil.NewSalesWorkbook().
				AddRawRow("Walmart", "2023-01-01", "South", "Texas", "Houston", 1, 1.5),
			checkErr: func(t *testing.T, err error) {
				require.True(t, apperrors.IsLoadError(err))
				assert.Contains(t, err.Error(), "UnitsSold")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWorkbook(t, tt.wb, "")
			require.Error(t, err)
			tt.checkErr(t, err)
		})
	}
}

func TestParser_EmptyNumericCellsAreZero(t *testing.T) {
	wb := testutil.NewSalesWorkbook().
		AddRawRow("Walmart", "2023-01-01", "South", "Texas", "Houston", "", "")

	table, err := parseWorkbook(t, wb, "")
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.True(t, table.Rows()[0].TotalSales.IsZero())
	assert.Zero(t, table.Rows()[0].UnitsSold)
}

func TestParser_NoSheets(t *testing.T) {
	_, err := NewParser(nil).Parse(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsLoadError(err))
}

func TestFindHeader(t *testing.T) {
	rows := [][]string{
		{"Adidas Sales"},
		{"Retailer", "InvoiceDate"},
		{" Retailer ", "InvoiceDate", "Region", "State", "City", "TotalSales", "UnitsSold", "Extra"},
	}

	m := findHeader("Data", rows, 10)
	assert.Equal(t, 2, m.row)
	assert.Equal(t, 0, m.columnMap["Retailer"])
	assert.Equal(t, 6, m.columnMap["UnitsSold"])

	m = findHeader("Data", rows[:2], 10)
	assert.Equal(t, -1, m.row)
	assert.ElementsMatch(t, []string{"Region", "State", "City", "TotalSales", "UnitsSold"}, m.missing)

	m = findHeader("Data", rows, 2)
	assert.Equal(t, -1, m.row, "header beyond scan limit")
}
