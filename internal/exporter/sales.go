package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"salesdash/internal/dataprocessing"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/domain"
)

// Download file names per derived table.
const (
	FileRetailerSales   = "RetailerSales.csv"
	FileMonthlySales    = "MonthlySales.csv"
	FileStateSales      = "Sales_by_UnitsSold.csv"
	FileRegionCitySales = "RegionCitySales.csv"
)

var (
	retailerHeaders   = []string{"Retailer", "TotalSales"}
	monthlyHeaders    = []string{"Month_Year", "TotalSales"}
	stateHeaders      = []string{"State", "TotalSales", "UnitsSold"}
	regionCityHeaders = []string{"Region", "City", "TotalSales", "Total Sales (Formatted)"}
)

// FileName returns the download name of a derived table.
func FileName(table string) (string, bool) {
	switch table {
	case dataprocessing.TableRetailers:
		return FileRetailerSales, true
	case dataprocessing.TableMonthly:
		return FileMonthlySales, true
	case dataprocessing.TableStates:
		return FileStateSales, true
	case dataprocessing.TableRegionCity:
		return FileRegionCitySales, true
	}
	return "", false
}

// SalesExporter writes derived tables as CSV.
type SalesExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
	metrics   *infrastructure.Metrics
	bom       bool
}

// SalesExporterOption configures a SalesExporter.
type SalesExporterOption func(*SalesExporter)

// WithBOM prefixes every file with a UTF-8 byte order mark.
func WithBOM(enabled bool) SalesExporterOption {
	return func(e *SalesExporter) { e.bom = enabled }
}

// WithExportMetrics counts every export.
func WithExportMetrics(m *infrastructure.Metrics) SalesExporterOption {
	return func(e *SalesExporter) { e.metrics = m }
}

// NewSalesExporter creates a new sales exporter.
func NewSalesExporter(w *CSVWriter, logger *slog.Logger, opts ...SalesExporterOption) *SalesExporter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &SalesExporter{
		csvWriter: w,
		logger:    logger.With(slog.String("component", "sales_exporter")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Records converts one derived table of report into CSV headers and rows.
func Records(report *domain.SalesReport, table string) ([]string, [][]string, error) {
	if report == nil {
		return nil, nil, apperrors.NewAggregationError("no sales report to export", nil)
	}

	switch table {
	case dataprocessing.TableRetailers:
		records := make([][]string, 0, len(report.Retailers))
		for _, name := range report.Retailers.Retailers() {
			records = append(records, []string{name, formatCurrency(report.Retailers[name])})
		}
		return retailerHeaders, records, nil

	case dataprocessing.TableMonthly:
		records := make([][]string, 0, len(report.Monthly))
		for _, m := range report.Monthly {
			records = append(records, []string{m.Label, formatCurrency(m.TotalSales)})
		}
		return monthlyHeaders, records, nil

	case dataprocessing.TableStates:
		records := make([][]string, 0, len(report.States))
		for _, state := range report.States.States() {
			totals := report.States[state]
			records = append(records, []string{state, formatCurrency(totals.TotalSales), formatInt(totals.UnitsSold)})
		}
		return stateHeaders, records, nil

	case dataprocessing.TableRegionCity:
		records := make([][]string, 0, len(report.RegionCity))
		for _, rc := range report.RegionCity {
			records = append(records, []string{rc.Region, rc.City, formatCurrency(rc.TotalSales), rc.FormattedSales})
		}
		return regionCityHeaders, records, nil
	}

	return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("sales table %q", table))
}

// WriteTable streams one derived table as CSV to w.
func (e *SalesExporter) WriteTable(ctx context.Context, w io.Writer, report *domain.SalesReport, table string) error {
	headers, records, err := Records(report, table)
	if err != nil {
		return err
	}

	if err := Encode(w, WriteOptions{Headers: headers, Records: records, BOMPrefix: e.bom}); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s csv", table), err)
	}

	e.metrics.RecordExport(ctx, table, "stream")
	return nil
}

// ExportTable writes one derived table to its file under dir and returns
// the written path.
func (e *SalesExporter) ExportTable(ctx context.Context, report *domain.SalesReport, table, dir string) (string, error) {
	staged, err := e.stageTable(report, table, dir)
	if err != nil {
		return "", err
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return "", e.storageError(staged.Path, err)
	}

	e.exported(ctx, table, staged.Path)
	return staged.Path, nil
}

// ExportAll writes the four CSV files under dir in dashboard order. The
// export is all or nothing: every file is staged before any is renamed
// into place, and a failure removes whatever this call already placed.
func (e *SalesExporter) ExportAll(ctx context.Context, report *domain.SalesReport, dir string) ([]string, error) {
	staged := make([]*StagedFile, 0, len(dataprocessing.Tables))
	discard := func() {
		for _, f := range staged {
			f.Discard()
		}
	}

	for _, table := range dataprocessing.Tables {
		if err := ctx.Err(); err != nil {
			discard()
			return nil, err
		}
		f, err := e.stageTable(report, table, dir)
		if err != nil {
			discard()
			return nil, err
		}
		staged = append(staged, f)
	}

	paths := make([]string, 0, len(staged))
	for _, f := range staged {
		if err := f.Commit(); err != nil {
			discard()
			for _, p := range paths {
				_ = os.Remove(p)
			}
			e.logger.ErrorContext(ctx, "sales export rolled back",
				slog.String("dir", dir),
				slog.Int("removed", len(paths)),
				slog.String("error", err.Error()))
			return nil, e.storageError(f.Path, err)
		}
		paths = append(paths, f.Path)
	}

	for i, table := range dataprocessing.Tables {
		e.exported(ctx, table, paths[i])
	}
	return paths, nil
}

func (e *SalesExporter) stageTable(report *domain.SalesReport, table, dir string) (*StagedFile, error) {
	name, ok := FileName(table)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sales table %q", table))
	}

	headers, records, err := Records(report, table)
	if err != nil {
		return nil, err
	}

	staged, err := e.csvWriter.Stage(filepath.Join(dir, name), WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: e.bom,
	})
	if err != nil {
		return nil, e.storageError(name, err)
	}
	return staged, nil
}

func (e *SalesExporter) storageError(path string, err error) error {
	name := filepath.Base(path)
	return apperrors.NewStorageError(fmt.Sprintf("export %s", name), err).
		WithContext("file", name)
}

func (e *SalesExporter) exported(ctx context.Context, table, path string) {
	e.metrics.RecordExport(ctx, table, "file")
	e.logger.InfoContext(ctx, "sales table exported",
		slog.String("table", table),
		slog.String("path", path))
}
