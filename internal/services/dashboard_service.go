package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"salesdash/internal/dataprocessing"
	"salesdash/pkg/contracts/domain"
)

// Sort orders accepted by Table.
const (
	SortDefault   = ""
	SortSalesDesc = "sales_desc"
)

// DatasetLoader is the part of the dataset cache the dashboard needs.
type DatasetLoader interface {
	Load(ctx context.Context, source string) (*domain.SalesTable, error)
	Invalidate(source string)
	Cached(source string) bool
	Stats() dataprocessing.LoaderStats
}

// TableWriter streams a derived table as CSV.
type TableWriter interface {
	WriteTable(ctx context.Context, w io.Writer, report *domain.SalesReport, table string) error
}

// DatasetInfo describes the currently loaded dataset.
type DatasetInfo struct {
	Source   string                     `json:"source"`
	Rows     int                        `json:"rows"`
	LoadedAt time.Time                  `json:"loaded_at"`
	Cache    dataprocessing.LoaderStats `json:"cache"`
}

// DashboardService renders the dashboard tables for one configured source.
type DashboardService struct {
	source     string
	loader     DatasetLoader
	summarizer *dataprocessing.Summarizer
	exporter   TableWriter
	logger     *slog.Logger
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(source string, loader DatasetLoader, summarizer *dataprocessing.Summarizer, exporter TableWriter, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if summarizer == nil {
		summarizer = dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{})
	}

	logger.Info("DashboardService initialized", slog.String("source", source))

	return &DashboardService{
		source:     source,
		loader:     loader,
		summarizer: summarizer,
		exporter:   exporter,
		logger:     logger.With(slog.String("component", "dashboard_service")),
	}
}

// Source returns the configured dataset identifier.
func (s *DashboardService) Source() string {
	return s.source
}

// Report loads the dataset and computes all four tables.
func (s *DashboardService) Report(ctx context.Context) (*domain.SalesReport, error) {
	table, err := s.loader.Load(ctx, s.source)
	if err != nil {
		return nil, err
	}
	return s.summarizer.Summarize(ctx, table)
}

// Table computes one derived table. sortBy is only meaningful for the
// region-city table.
func (s *DashboardService) Table(ctx context.Context, name, sortBy string) (interface{}, error) {
	if !IsKnownTable(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	if sortBy != SortDefault && (sortBy != SortSalesDesc || name != dataprocessing.TableRegionCity) {
		return nil, fmt.Errorf("%w: %q for table %s", ErrInvalidSort, sortBy, name)
	}

	table, err := s.loader.Load(ctx, s.source)
	if err != nil {
		return nil, err
	}

	out, err := s.summarizer.Table(ctx, table, name)
	if err != nil {
		return nil, err
	}

	if sortBy == SortSalesDesc {
		out = dataprocessing.SortBySalesDesc(out.([]domain.RegionCitySales))
	}
	return out, nil
}

// WriteCSV streams one derived table as CSV.
func (s *DashboardService) WriteCSV(ctx context.Context, w io.Writer, name string) error {
	if !IsKnownTable(name) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	if s.exporter == nil {
		return ErrServiceUnavailable
	}

	report, err := s.Report(ctx)
	if err != nil {
		return err
	}
	return s.exporter.WriteTable(ctx, w, report, name)
}

// Reload drops the cached dataset and loads it again.
func (s *DashboardService) Reload(ctx context.Context) (*DatasetInfo, error) {
	s.loader.Invalidate(s.source)

	table, err := s.loader.Load(ctx, s.source)
	if err != nil {
		s.logger.ErrorContext(ctx, "dataset reload failed",
			slog.String("source", s.source),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "dataset reloaded",
		slog.String("source", s.source),
		slog.Int("rows", table.Len()))

	return &DatasetInfo{
		Source:   s.source,
		Rows:     table.Len(),
		LoadedAt: table.LoadedAt(),
		Cache:    s.loader.Stats(),
	}, nil
}

// Stats returns loader cache counters.
func (s *DashboardService) Stats() dataprocessing.LoaderStats {
	return s.loader.Stats()
}

// Loaded reports whether the configured dataset is in the cache.
func (s *DashboardService) Loaded() bool {
	return s.loader.Cached(s.source)
}

// IsKnownTable reports whether name is one of the derived tables.
func IsKnownTable(name string) bool {
	for _, t := range dataprocessing.Tables {
		if t == name {
			return true
		}
	}
	return false
}
