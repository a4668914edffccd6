package http

import (
	"fmt"
	"time"

	"salesdash/internal/dataprocessing"
	"salesdash/internal/exporter"
	"salesdash/pkg/contracts/domain"
)

// DashboardTitle is shown above the charts.
const DashboardTitle = "Adidas Interactive Sales Dashboard"

// SeriesHint describes one plotted measure.
type SeriesHint struct {
	Field string `json:"field"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Axis  string `json:"axis"`
}

// ChartHint tells a client how to plot a table.
type ChartHint struct {
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	X         string       `json:"x,omitempty"`
	XTitle    string       `json:"x_title,omitempty"`
	TickAngle int          `json:"tick_angle,omitempty"`
	Series    []SeriesHint `json:"series,omitempty"`
	Path      []string     `json:"path,omitempty"`
	Value     string       `json:"value,omitempty"`
	Hover     string       `json:"hover,omitempty"`
}

var chartHints = map[string]ChartHint{
	dataprocessing.TableRetailers: {
		Type:   "bar",
		Title:  "Total Sales by Retailer",
		X:      "retailer",
		Series: []SeriesHint{{Field: "total_sales", Name: "Total Sales {$}", Kind: "bar", Axis: "y"}},
	},
	dataprocessing.TableMonthly: {
		Type:      "line",
		Title:     "Total Sales Over Time",
		X:         "month_year",
		TickAngle: 45,
		Series:    []SeriesHint{{Field: "total_sales", Name: "TotalSales", Kind: "line", Axis: "y"}},
	},
	dataprocessing.TableStates: {
		Type:   "bar_line",
		Title:  "Total Sales and Units Sold by State",
		X:      "state",
		XTitle: "State",
		Series: []SeriesHint{
			{Field: "total_sales", Name: "Total Sales", Kind: "bar", Axis: "y"},
			{Field: "units_sold", Name: "Units Sold", Kind: "line", Axis: "y2"},
		},
	},
	dataprocessing.TableRegionCity: {
		Type:  "treemap",
		Title: "Total Sales by Region and City",
		Path:  []string{"region", "city"},
		Value: "total_sales",
		Hover: "total_sales_formatted",
	},
}

// TableView is one derived table as rendered to clients.
type TableView struct {
	Table    string      `json:"table"`
	Chart    ChartHint   `json:"chart"`
	Download string      `json:"download"`
	FileName string      `json:"file_name"`
	Count    int         `json:"count"`
	Rows     interface{} `json:"rows"`
}

// DashboardMetadata heads the dashboard response.
type DashboardMetadata struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	LastUpdated string `json:"last_updated"`
	LoadedAt    string `json:"loaded_at"`
	RowCount    int    `json:"row_count"`
}

// DashboardView is the full dashboard payload.
type DashboardView struct {
	Metadata DashboardMetadata `json:"metadata"`
	Tables   []TableView       `json:"tables"`
}

type retailerRow struct {
	Retailer   string  `json:"retailer"`
	TotalSales float64 `json:"total_sales"`
}

type monthRow struct {
	MonthYear  string  `json:"month_year"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	TotalSales float64 `json:"total_sales"`
}

type stateRow struct {
	State      string  `json:"state"`
	TotalSales float64 `json:"total_sales"`
	UnitsSold  int64   `json:"units_sold"`
}

type regionCityRow struct {
	Region              string  `json:"region"`
	City                string  `json:"city"`
	TotalSales          float64 `json:"total_sales"`
	TotalSalesFormatted string  `json:"total_sales_formatted"`
}

// presentRows converts a derived table into JSON rows. Sums are exact
// decimals internally and become float64 only here.
func presentRows(v interface{}) (interface{}, int, error) {
	switch t := v.(type) {
	case domain.RetailerSales:
		rows := make([]retailerRow, 0, len(t))
		for _, name := range t.Retailers() {
			rows = append(rows, retailerRow{Retailer: name, TotalSales: t[name].InexactFloat64()})
		}
		return rows, len(rows), nil
	case []domain.MonthlySales:
		rows := make([]monthRow, 0, len(t))
		for _, m := range t {
			rows = append(rows, monthRow{MonthYear: m.Label, Year: m.Year, Month: int(m.Month), TotalSales: m.TotalSales.InexactFloat64()})
		}
		return rows, len(rows), nil
	case domain.StateSales:
		rows := make([]stateRow, 0, len(t))
		for _, state := range t.States() {
			rows = append(rows, stateRow{State: state, TotalSales: t[state].TotalSales.InexactFloat64(), UnitsSold: t[state].UnitsSold})
		}
		return rows, len(rows), nil
	case []domain.RegionCitySales:
		rows := make([]regionCityRow, 0, len(t))
		for _, rc := range t {
			rows = append(rows, regionCityRow{Region: rc.Region, City: rc.City, TotalSales: rc.TotalSales.InexactFloat64(), TotalSalesFormatted: rc.FormattedSales})
		}
		return rows, len(rows), nil
	}
	return nil, 0, fmt.Errorf("unsupported table type %T", v)
}

func newTableView(name string, v interface{}) (TableView, error) {
	rows, count, err := presentRows(v)
	if err != nil {
		return TableView{}, err
	}
	fileName, _ := exporter.FileName(name)
	return TableView{
		Table:    name,
		Chart:    chartHints[name],
		Download: "/api/sales/" + name + "/csv",
		FileName: fileName,
		Count:    count,
		Rows:     rows,
	}, nil
}

func newDashboardView(report *domain.SalesReport) (*DashboardView, error) {
	tables := map[string]interface{}{
		dataprocessing.TableRetailers:  report.Retailers,
		dataprocessing.TableMonthly:    report.Monthly,
		dataprocessing.TableStates:     report.States,
		dataprocessing.TableRegionCity: report.RegionCity,
	}

	view := &DashboardView{
		Metadata: DashboardMetadata{
			Title:       DashboardTitle,
			Source:      report.Source,
			LastUpdated: report.LastUpdated,
			LoadedAt:    report.LoadedAt.Format(time.RFC3339),
			RowCount:    report.RowCount,
		},
		Tables: make([]TableView, 0, len(dataprocessing.Tables)),
	}
	for _, name := range dataprocessing.Tables {
		tv, err := newTableView(name, tables[name])
		if err != nil {
			return nil, err
		}
		view.Tables = append(view.Tables, tv)
	}
	return view, nil
}
