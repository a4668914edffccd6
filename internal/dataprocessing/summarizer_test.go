package dataprocessing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/shared/testutil"
	"salesdash/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(retailer string, date time.Time, region, state, city string, sales int64, units int64) domain.Transaction {
	return domain.Transaction{
		Retailer:    retailer,
		InvoiceDate: date,
		Region:      region,
		State:       state,
		City:        city,
		TotalSales:  decimal.NewFromInt(sales),
		UnitsSold:   units,
	}
}

func newTable(rows ...domain.Transaction) *domain.SalesTable {
	return domain.NewSalesTable("test", day(2024, time.March, 1), domain.RequiredColumns, rows)
}

// footLockerTable is the two-retailer, two-month scenario used across tests.
func footLockerTable() *domain.SalesTable {
	return newTable(
		tx("Foot Locker", day(2020, time.January, 1), "West", "California", "Los Angeles", 100, 10),
		tx("Foot Locker", day(2020, time.February, 3), "West", "California", "San Francisco", 50, 5),
		tx("Walmart", day(2020, time.January, 20), "South", "Texas", "Houston", 75, 8),
	)
}

func TestRetailerSales(t *testing.T) {
	got, err := RetailerSales(footLockerTable())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, got["Foot Locker"].Equal(decimal.NewFromInt(150)))
	assert.True(t, got["Walmart"].Equal(decimal.NewFromInt(75)))
	assert.Equal(t, []string{"Foot Locker", "Walmart"}, got.Retailers())
}

func TestMonthlySales(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		got, err := MonthlySales(footLockerTable())
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "Jan 20", got[0].Label)
		assert.True(t, got[0].TotalSales.Equal(decimal.NewFromInt(175)))
		assert.Equal(t, "Feb 20", got[1].Label)
		assert.True(t, got[1].TotalSales.Equal(decimal.NewFromInt(50)))
	})

	t.Run("same month different years stay separate", func(t *testing.T) {
		got, err := MonthlySales(newTable(
			tx("Amazon", day(2024, time.January, 9), "West", "Oregon", "Portland", 5, 1),
			tx("Amazon", day(2023, time.January, 9), "West", "Oregon", "Portland", 7, 1),
			tx("Amazon", day(2023, time.December, 31), "West", "Oregon", "Portland", 1, 1),
		))
		require.NoError(t, err)

		labels := make([]string, len(got))
		for i, m := range got {
			labels[i] = m.Label
		}
		assert.Equal(t, []string{"Jan 23", "Dec 23", "Jan 24"}, labels)
		assert.Equal(t, 2023, got[0].Year)
		assert.Equal(t, time.January, got[0].Month)
		assert.True(t, got[0].TotalSales.Equal(decimal.NewFromInt(7)))
	})

	t.Run("label matches every member row", func(t *testing.T) {
		table := footLockerTable()
		got, err := MonthlySales(table)
		require.NoError(t, err)

		labels := map[string]bool{}
		for _, m := range got {
			labels[m.Label] = true
		}
		table.Each(func(row domain.Transaction) {
			assert.True(t, labels[row.InvoiceDate.Format(MonthLabelLayout)])
		})
	})
}

func TestStateSales(t *testing.T) {
	got, err := StateSales(footLockerTable())
	require.NoError(t, err)

	assert.Equal(t, []string{"California", "Texas"}, got.States())
	assert.True(t, got["California"].TotalSales.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(15), got["California"].UnitsSold)
	assert.Equal(t, int64(8), got["Texas"].UnitsSold)
}

func TestRegionCitySales(t *testing.T) {
	got, err := RegionCitySales(newTable(
		tx("A", day(2021, 1, 1), "West", "California", "San Francisco", 250000, 1),
		tx("B", day(2021, 1, 1), "South", "Texas", "Houston", 0, 1),
		tx("C", day(2021, 1, 1), "West", "California", "Los Angeles", 100000, 1),
		tx("D", day(2021, 1, 1), "West", "California", "Los Angeles", 50000, 1),
	))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.RegionCitySales{
		Region: "South", City: "Houston", TotalSales: got[0].TotalSales, FormattedSales: " 0.00 Lakh",
	}, got[0])
	assert.Equal(t, "Los Angeles", got[1].City)
	assert.Equal(t, " 1.50 Lakh", got[1].FormattedSales)
	assert.Equal(t, "San Francisco", got[2].City)
	assert.Equal(t, " 2.50 Lakh", got[2].FormattedSales)

	sorted := SortBySalesDesc(got)
	assert.Equal(t, []string{"San Francisco", "Los Angeles", "Houston"},
		[]string{sorted[0].City, sorted[1].City, sorted[2].City})
	assert.Equal(t, "Houston", got[0].City, "input left untouched")
}

func TestAggregationErrors(t *testing.T) {
	missingState := domain.NewSalesTable("test", time.Now(),
		[]string{domain.ColumnRetailer, domain.ColumnInvoiceDate, domain.ColumnRegion, domain.ColumnCity, domain.ColumnTotalSales},
		nil)

	negative := newTable(tx("A", day(2021, 1, 1), "West", "Utah", "Provo", -10, 1))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"nil table", func() error { _, err := RetailerSales(nil); return err }},
		{"state missing", func() error { _, err := StateSales(missingState); return err }},
		{"units missing", func() error { _, err := StateSales(domain.NewSalesTable("t", time.Now(), nil, nil)); return err }},
		{"negative region total", func() error { _, err := RegionCitySales(negative); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, apperrors.IsAggregationError(err))
		})
	}

	t.Run("unrelated aggregations still work", func(t *testing.T) {
		_, err := RetailerSales(missingState)
		assert.NoError(t, err)
	})
}

func TestAggregationsConserveTotals(t *testing.T) {
	faker := gofakeit.New(42)
	retailers := []string{"Foot Locker", "Walmart", "Sports Direct", "West Gear", "Kohl's", "Amazon"}
	regions := []string{"Northeast", "South", "West", "Midwest", "Southeast"}

	rows := make([]domain.Transaction, 500)
	for i := range rows {
		rows[i] = domain.Transaction{
			Retailer:    faker.RandomString(retailers),
			InvoiceDate: faker.DateRange(day(2020, 1, 1), day(2021, 12, 31)).UTC(),
			Region:      faker.RandomString(regions),
			State:       faker.State(),
			City:        faker.City(),
			TotalSales:  decimal.NewFromFloat(faker.Price(0, 100000)).Round(2),
			UnitsSold:   int64(faker.IntRange(0, 1000)),
		}
	}
	table := newTable(rows...)
	wantSales := table.TotalSales()
	wantUnits := table.TotalUnits()

	report, err := NewSummarizer(nil, SummarizerConfig{}).Summarize(context.Background(), table)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, v := range report.Retailers {
		sum = sum.Add(v)
	}
	assert.True(t, wantSales.Equal(sum), "retailers")

	sum = decimal.Zero
	for _, m := range report.Monthly {
		sum = sum.Add(m.TotalSales)
	}
	assert.True(t, wantSales.Equal(sum), "monthly")

	sum = decimal.Zero
	var units int64
	for _, s := range report.States {
		sum = sum.Add(s.TotalSales)
		units += s.UnitsSold
	}
	assert.True(t, wantSales.Equal(sum), "states")
	assert.Equal(t, wantUnits, units)

	sum = decimal.Zero
	seen := map[[2]string]bool{}
	for _, rc := range report.RegionCity {
		key := [2]string{rc.Region, rc.City}
		assert.False(t, seen[key], "duplicate %v", key)
		seen[key] = true
		sum = sum.Add(rc.TotalSales)
	}
	assert.True(t, wantSales.Equal(sum), "region/city")

	for i := 1; i < len(report.Monthly); i++ {
		prev, cur := report.Monthly[i-1], report.Monthly[i]
		assert.True(t, prev.Year < cur.Year || (prev.Year == cur.Year && prev.Month < cur.Month))
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	s := NewSummarizer(logger, SummarizerConfig{})
	table := footLockerTable()

	report, err := s.Summarize(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, "test", report.Source)
	assert.Equal(t, 3, report.RowCount)
	assert.Equal(t, "01 March 2024", report.LastUpdated)
	assert.Len(t, report.Retailers, 2)
	assert.Len(t, report.Monthly, 2)
	assert.Len(t, report.States, 2)
	assert.Len(t, report.RegionCity, 3)
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "sales summary generated")

	again, err := s.Summarize(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, report.Monthly, again.Monthly, "idempotent")
	assert.NotSame(t, report, again)
}

func TestSummarizer_SummarizeFailsWhole(t *testing.T) {
	s := NewSummarizer(nil, SummarizerConfig{})

	report, err := s.Summarize(context.Background(),
		newTable(tx("A", day(2021, 1, 1), "West", "Utah", "Provo", -10, 1)))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, apperrors.IsAggregationError(err))

	_, err = s.Summarize(context.Background(), nil)
	assert.True(t, apperrors.IsAggregationError(err))
}

func TestSummarizer_Table(t *testing.T) {
	s := NewSummarizer(nil, SummarizerConfig{LastUpdatedLayout: time.RFC3339})
	table := footLockerTable()

	tests := []struct {
		name   string
		assert func(t *testing.T, v interface{})
	}{
		{TableRetailers, func(t *testing.T, v interface{}) { assert.IsType(t, domain.RetailerSales{}, v) }},
		{TableMonthly, func(t *testing.T, v interface{}) { assert.IsType(t, []domain.MonthlySales{}, v) }},
		{TableStates, func(t *testing.T, v interface{}) { assert.IsType(t, domain.StateSales{}, v) }},
		{TableRegionCity, func(t *testing.T, v interface{}) { assert.IsType(t, []domain.RegionCitySales{}, v) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := s.Table(context.Background(), table, tt.name)
			require.NoError(t, err)
			tt.assert(t, v)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := s.Table(context.Background(), table, "products")
		require.Error(t, err)
		typ, ok := apperrors.TypeOf(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrTypeNotFound, typ)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Table(ctx, table, TableRetailers)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
