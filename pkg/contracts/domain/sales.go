package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the sales dataset. Lookups are exact and case-sensitive.
const (
	ColumnRetailer    = "Retailer"
	ColumnInvoiceDate = "InvoiceDate"
	ColumnRegion      = "Region"
	ColumnState       = "State"
	ColumnCity        = "City"
	ColumnTotalSales  = "TotalSales"
	ColumnUnitsSold   = "UnitsSold"
)

// RequiredColumns lists every column a sales dataset must carry.
var RequiredColumns = []string{
	ColumnRetailer,
	ColumnInvoiceDate,
	ColumnRegion,
	ColumnState,
	ColumnCity,
	ColumnTotalSales,
	ColumnUnitsSold,
}

// Transaction is a single row of the sales dataset.
type Transaction struct {
	Retailer    string          `json:"retailer"`
	InvoiceDate time.Time       `json:"invoice_date"`
	Region      string          `json:"region"`
	State       string          `json:"state"`
	City        string          `json:"city"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	UnitsSold   int64           `json:"units_sold"`
}

// SalesTable is the immutable base table produced by a dataset load.
// Nothing outside this file can change its rows once it is built.
type SalesTable struct {
	source   string
	loadedAt time.Time
	columns  map[string]struct{}
	rows     []Transaction
}

// NewSalesTable copies rows and columns into a new table.
func NewSalesTable(source string, loadedAt time.Time, columns []string, rows []Transaction) *SalesTable {
	cols := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
	}

	copied := make([]Transaction, len(rows))
	copy(copied, rows)

	return &SalesTable{
		source:   source,
		loadedAt: loadedAt,
		columns:  cols,
		rows:     copied,
	}
}

// Source returns the identifier the table was loaded from.
func (t *SalesTable) Source() string {
	return t.source
}

// LoadedAt returns the time the table was materialized.
func (t *SalesTable) LoadedAt() time.Time {
	return t.loadedAt
}

// Len returns the number of rows.
func (t *SalesTable) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the dataset header declared the named column.
func (t *SalesTable) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Columns returns the declared column names in sorted order.
func (t *SalesTable) Columns() []string {
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Rows returns a copy of the table rows.
func (t *SalesTable) Rows() []Transaction {
	out := make([]Transaction, len(t.rows))
	copy(out, t.rows)
	return out
}

// Each calls fn for every row in load order. Rows are passed by value.
func (t *SalesTable) Each(fn func(Transaction)) {
	for _, row := range t.rows {
		fn(row)
	}
}

// TotalSales sums TotalSales over every row.
func (t *SalesTable) TotalSales() decimal.Decimal {
	total := decimal.Zero
	for _, row := range t.rows {
		total = total.Add(row.TotalSales)
	}
	return total
}

// TotalUnits sums UnitsSold over every row.
func (t *SalesTable) TotalUnits() int64 {
	var total int64
	for _, row := range t.rows {
		total += row.UnitsSold
	}
	return total
}

// RetailerSales maps a retailer to its summed TotalSales.
type RetailerSales map[string]decimal.Decimal

// Retailers returns the keys in ascending order.
func (r RetailerSales) Retailers() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MonthlySales is the TotalSales sum of one calendar month.
type MonthlySales struct {
	Label      string          `json:"month_year"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

// StateTotals holds the two measures summed per state.
type StateTotals struct {
	TotalSales decimal.Decimal `json:"total_sales"`
	UnitsSold  int64           `json:"units_sold"`
}

// StateSales maps a state to its summed measures.
type StateSales map[string]StateTotals

// States returns the keys in ascending order.
func (s StateSales) States() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegionCitySales is the TotalSales sum of one (Region, City) pair.
type RegionCitySales struct {
	Region         string          `json:"region"`
	City           string          `json:"city"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	FormattedSales string          `json:"total_sales_formatted"`
}

// SalesReport bundles the four derived tables of one rendering pass.
type SalesReport struct {
	Source      string            `json:"source"`
	LoadedAt    time.Time         `json:"loaded_at"`
	LastUpdated string            `json:"last_updated"`
	RowCount    int               `json:"row_count"`
	Retailers   RetailerSales     `json:"retailers"`
	Monthly     []MonthlySales    `json:"monthly"`
	States      StateSales        `json:"states"`
	RegionCity  []RegionCitySales `json:"region_city"`
}
