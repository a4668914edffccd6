package http

import (
	"context"
	"io"

	"salesdash/internal/dataprocessing"
	"salesdash/internal/services"
	"salesdash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations handlers need
type DashboardServiceInterface interface {
	Report(ctx context.Context) (*domain.SalesReport, error)
	Table(ctx context.Context, name, sortBy string) (interface{}, error)
	WriteCSV(ctx context.Context, w io.Writer, name string) error
	Reload(ctx context.Context) (*services.DatasetInfo, error)
	Stats() dataprocessing.LoaderStats
	Source() string
}
