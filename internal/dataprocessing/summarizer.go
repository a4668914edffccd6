package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/domain"
)

// MonthLabelLayout renders a month as abbreviated month and two-digit year.
const MonthLabelLayout = "Jan 06"

// Table names shared by the summarizer, the exporter and the HTTP layer.
const (
	TableRetailers  = "retailers"
	TableMonthly    = "monthly"
	TableStates     = "states"
	TableRegionCity = "region-city"
)

// Tables lists the derived tables in dashboard order.
var Tables = []string{TableRetailers, TableMonthly, TableStates, TableRegionCity}

func requireColumns(table *domain.SalesTable, columns ...string) error {
	if table == nil {
		return apperrors.NewAggregationError("no sales table to aggregate", nil)
	}
	for _, col := range columns {
		if !table.HasColumn(col) {
			return apperrors.NewAggregationError(fmt.Sprintf("column %s missing from dataset", col), nil).
				WithContext("column", col)
		}
	}
	return nil
}

// RetailerSales sums TotalSales per Retailer.
func RetailerSales(table *domain.SalesTable) (domain.RetailerSales, error) {
	if err := requireColumns(table, domain.ColumnRetailer, domain.ColumnTotalSales); err != nil {
		return nil, err
	}

	out := make(domain.RetailerSales)
	table.Each(func(tx domain.Transaction) {
		out[tx.Retailer] = out[tx.Retailer].Add(tx.TotalSales)
	})
	return out, nil
}

// MonthlySales sums TotalSales per calendar month, oldest first. Months
// with the same name in different years stay separate.
func MonthlySales(table *domain.SalesTable) ([]domain.MonthlySales, error) {
	if err := requireColumns(table, domain.ColumnInvoiceDate, domain.ColumnTotalSales); err != nil {
		return nil, err
	}

	type monthKey struct {
		year  int
		month time.Month
	}
	sums := make(map[monthKey]decimal.Decimal)
	table.Each(func(tx domain.Transaction) {
		k := monthKey{tx.InvoiceDate.Year(), tx.InvoiceDate.Month()}
		sums[k] = sums[k].Add(tx.TotalSales)
	})

	out := make([]domain.MonthlySales, 0, len(sums))
	for k, total := range sums {
		out = append(out, domain.MonthlySales{
			Label:      time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC).Format(MonthLabelLayout),
			Year:       k.year,
			Month:      k.month,
			TotalSales: total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// StateSales sums TotalSales and UnitsSold per State.
func StateSales(table *domain.SalesTable) (domain.StateSales, error) {
	if err := requireColumns(table, domain.ColumnState, domain.ColumnTotalSales, domain.ColumnUnitsSold); err != nil {
		return nil, err
	}

	out := make(domain.StateSales)
	table.Each(func(tx domain.Transaction) {
		cur := out[tx.State]
		cur.TotalSales = cur.TotalSales.Add(tx.TotalSales)
		cur.UnitsSold += tx.UnitsSold
		out[tx.State] = cur
	})
	return out, nil
}

// RegionCitySales sums TotalSales per (Region, City), ordered by Region
// then City, each with its lakh-formatted total.
func RegionCitySales(table *domain.SalesTable) ([]domain.RegionCitySales, error) {
	if err := requireColumns(table, domain.ColumnRegion, domain.ColumnCity, domain.ColumnTotalSales); err != nil {
		return nil, err
	}

	type pair struct{ region, city string }
	sums := make(map[pair]decimal.Decimal)
	table.Each(func(tx domain.Transaction) {
		k := pair{tx.Region, tx.City}
		sums[k] = sums[k].Add(tx.TotalSales)
	})

	out := make([]domain.RegionCitySales, 0, len(sums))
	for k, total := range sums {
		formatted, err := FormatSales(total)
		if err != nil {
			return nil, apperrors.NewAggregationError(
				fmt.Sprintf("format sales for %s/%s", k.region, k.city), err).
				WithContext("region", k.region).
				WithContext("city", k.city)
		}
		out = append(out, domain.RegionCitySales{
			Region:         k.region,
			City:           k.city,
			TotalSales:     total,
			FormattedSales: formatted,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].City < out[j].City
	})
	return out, nil
}

// SortBySalesDesc returns a copy ordered by TotalSales, largest first.
// Ties keep Region, City order.
func SortBySalesDesc(rows []domain.RegionCitySales) []domain.RegionCitySales {
	out := make([]domain.RegionCitySales, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalSales.Cmp(out[j].TotalSales); c != 0 {
			return c > 0
		}
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].City < out[j].City
	})
	return out
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	// LastUpdatedLayout formats the table load time for display.
	LastUpdatedLayout string
	Metrics           *infrastructure.Metrics
}

// Summarizer runs the four aggregations over one base table.
type Summarizer struct {
	logger            *slog.Logger
	tracer            trace.Tracer
	metrics           *infrastructure.Metrics
	lastUpdatedLayout string
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LastUpdatedLayout == "" {
		config.LastUpdatedLayout = "02 January 2006"
	}
	return &Summarizer{
		logger:            logger.With(slog.String("component", "summarizer")),
		tracer:            otel.Tracer(tracerName),
		metrics:           config.Metrics,
		lastUpdatedLayout: config.LastUpdatedLayout,
	}
}

// Summarize computes all four derived tables concurrently. Any failure
// fails the whole report.
func (s *Summarizer) Summarize(ctx context.Context, table *domain.SalesTable) (*domain.SalesReport, error) {
	if err := requireColumns(table); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "sales.summarize",
		trace.WithAttributes(
			attribute.String("dataset.source", table.Source()),
			attribute.Int("dataset.rows", table.Len()),
		))
	defer span.End()

	report := &domain.SalesReport{
		Source:      table.Source(),
		LoadedAt:    table.LoadedAt(),
		LastUpdated: table.LoadedAt().Format(s.lastUpdatedLayout),
		RowCount:    table.Len(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.run(gctx, TableRetailers, func() (err error) {
			report.Retailers, err = RetailerSales(table)
			return err
		})
	})
	g.Go(func() error {
		return s.run(gctx, TableMonthly, func() (err error) {
			report.Monthly, err = MonthlySales(table)
			return err
		})
	})
	g.Go(func() error {
		return s.run(gctx, TableStates, func() (err error) {
			report.States, err = StateSales(table)
			return err
		})
	})
	g.Go(func() error {
		return s.run(gctx, TableRegionCity, func() (err error) {
			report.RegionCity, err = RegionCitySales(table)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "sales summary failed",
			slog.String("source", table.Source()),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "sales summary generated",
		slog.String("source", table.Source()),
		slog.Int("rows", table.Len()),
		slog.Int("retailers", len(report.Retailers)),
		slog.Int("months", len(report.Monthly)),
		slog.Int("states", len(report.States)),
		slog.Int("region_cities", len(report.RegionCity)))

	return report, nil
}

// Table computes a single derived table by name.
func (s *Summarizer) Table(ctx context.Context, table *domain.SalesTable, name string) (interface{}, error) {
	var out interface{}
	err := s.run(ctx, name, func() (err error) {
		switch name {
		case TableRetailers:
			out, err = RetailerSales(table)
		case TableMonthly:
			out, err = MonthlySales(table)
		case TableStates:
			out, err = StateSales(table)
		case TableRegionCity:
			out, err = RegionCitySales(table)
		default:
			err = apperrors.NewNotFoundError(fmt.Sprintf("sales table %q", name))
		}
		return err
	})
	return out, err
}

func (s *Summarizer) run(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	s.metrics.RecordAggregation(ctx, name, time.Since(start), err)
	return err
}
