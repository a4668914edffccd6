package http

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/crypto/blake2b"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	appmiddleware "salesdash/internal/middleware"
	"salesdash/internal/services"
)

// DashboardHandler handles dashboard HTTP requests with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/dashboard", h.GetDashboard)

	r.Route("/sales/{table}", func(r chi.Router) {
		r.Use(h.TableCtx)
		r.With(appmiddleware.ValidateQuery(appmiddleware.QueryRules{
			"sort": "omitempty,oneof=" + services.SortSalesDesc,
		}, h.errorHandler)).Get("/", h.GetTable)
		r.Get("/csv", h.DownloadCSV)
	})

	r.Post("/dataset/reload", h.ReloadDataset)
	r.Get("/dataset/stats", h.GetStats)

	return r
}

// TableCtx rejects unknown table names before any dataset work.
func (h *DashboardHandler) TableCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		if !services.IsKnownTable(table) {
			h.errorHandler.HandleError(w, r, apierrors.ErrTableNotFound.With(
				fmt.Sprintf("Sales table '%s' not found", table),
				map[string]interface{}{"table": table},
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "rendering dashboard",
		slog.String("request_id", reqID),
		slog.String("source", h.service.Source()),
	)

	report, err := h.service.Report(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	view, err := newDashboardView(report)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// GetTable handles GET /api/sales/{table}
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	sortBy := r.URL.Query().Get("sort")

	h.logger.InfoContext(r.Context(), "fetching sales table",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("table", table),
		slog.String("sort", sortBy),
	)

	data, err := h.service.Table(r.Context(), table, sortBy)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	view, err := newTableView(table, data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// DownloadCSV handles GET /api/sales/{table}/csv. The body is built in
// memory so a failure still produces a problem response, and so the ETag
// can be computed over the exact bytes served.
func (h *DashboardHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	fileName, _ := exporter.FileName(table)

	var buf bytes.Buffer
	if err := h.service.WriteCSV(r.Context(), &buf, table); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	sum := blake2b.Sum256(buf.Bytes())
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "csv write interrupted",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "csv downloaded",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("table", table),
		slog.String("file_name", fileName),
		slog.Int("bytes", buf.Len()),
	)
}

// ReloadDataset handles POST /api/dataset/reload
func (h *DashboardHandler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Reload(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// GetStats handles GET /api/dataset/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"source": h.service.Source(),
			"cache":  h.service.Stats(),
		},
	})
}

// handleServiceError maps service sentinels to API errors. Everything else,
// including typed dataset errors, goes to the shared error handler.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownTable):
		h.errorHandler.HandleError(w, r, apierrors.ErrTableNotFound.With(err.Error(), nil))
	case errors.Is(err, services.ErrInvalidSort):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sort", err.Error()))
	case errors.Is(err, services.ErrServiceUnavailable):
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
