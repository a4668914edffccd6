package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	apierrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/shared/testutil"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	return testutil.NewSalesWorkbook().
		WithTitleRows("Adidas US Sales Datasets").
		AddRow(
			testutil.SalesRow{Retailer: "Foot Locker", InvoiceDate: "2020-01-01", Region: "West", State: "California", City: "Los Angeles", TotalSales: 100, UnitsSold: 10},
			testutil.SalesRow{Retailer: "Foot Locker", InvoiceDate: "2020-02-03", Region: "West", State: "California", City: "Los Angeles", TotalSales: 50, UnitsSold: 4},
			testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "2020-01-15", Region: "South", State: "Texas", City: "Houston", TotalSales: 75, UnitsSold: 8},
		).
		WriteFile(t, t.TempDir(), "Adidas.xlsx")
}

func testConfig(t *testing.T, source string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dataset.Source = source
	cfg.Export.OutputDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Telemetry.EnableTracing = false
	cfg.Telemetry.EnableMetrics = true
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, source string) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplication(testConfig(t, source), WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.OTelProviders.Shutdown(context.Background())
	})
	return app
}

func serve(t *testing.T, app *Application, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	_, err := NewApplication(nil)
	require.Error(t, err)
}

func TestApplication_Dashboard(t *testing.T) {
	app := newTestApp(t, writeDataset(t))

	rec := serve(t, app, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	data := decode(t, rec)["data"].(map[string]interface{})
	meta := data["metadata"].(map[string]interface{})
	assert.EqualValues(t, 3, meta["row_count"])
	assert.NotEmpty(t, meta["last_updated"])

	tables := data["tables"].([]interface{})
	require.Len(t, tables, 4)

	retailers := tables[0].(map[string]interface{})
	assert.Equal(t, "retailers", retailers["table"])
	assert.Equal(t, "bar", retailers["chart"].(map[string]interface{})["type"])
	rows := retailers["rows"].([]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, "Foot Locker", rows[0].(map[string]interface{})["retailer"])
	assert.EqualValues(t, 150, rows[0].(map[string]interface{})["total_sales"])

	monthly := tables[1].(map[string]interface{})["rows"].([]interface{})
	require.Len(t, monthly, 2)
	assert.Equal(t, "Jan 20", monthly[0].(map[string]interface{})["month_year"])
	assert.EqualValues(t, 175, monthly[0].(map[string]interface{})["total_sales"])
	assert.Equal(t, "Feb 20", monthly[1].(map[string]interface{})["month_year"])
}

func TestApplication_CSVDownload(t *testing.T) {
	app := newTestApp(t, writeDataset(t))

	tests := []struct {
		table    string
		fileName string
		header   []string
		rows     int
	}{
		{"retailers", exporter.FileRetailerSales, []string{"Retailer", "TotalSales"}, 2},
		{"monthly", exporter.FileMonthlySales, []string{"Month_Year", "TotalSales"}, 2},
		{"states", exporter.FileStateSales, []string{"State", "TotalSales", "UnitsSold"}, 2},
		{"region-city", exporter.FileRegionCitySales, []string{"Region", "City", "TotalSales", "Total Sales (Formatted)"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			rec := serve(t, app, http.MethodGet, "/api/sales/"+tt.table+"/csv")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), tt.fileName)

			records, err := csv.NewReader(rec.Body).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, tt.rows+1)
			assert.Equal(t, tt.header, records[0])
		})
	}

	// One fetch served every request.
	assert.EqualValues(t, 1, app.DashboardService.Stats().Fetches)
}

func TestApplication_Errors(t *testing.T) {
	t.Run("unknown route", func(t *testing.T) {
		app := newTestApp(t, writeDataset(t))
		rec := serve(t, app, http.MethodGet, "/api/nothing/here")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apierrors.TypeNotFound, decode(t, rec)["type"])
	})

	t.Run("unknown table", func(t *testing.T) {
		app := newTestApp(t, writeDataset(t))
		rec := serve(t, app, http.MethodGet, "/api/sales/products")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apierrors.TypeTableNotFound, decode(t, rec)["type"])
	})

	t.Run("missing dataset is a load error", func(t *testing.T) {
		app := newTestApp(t, filepath.Join(t.TempDir(), "missing.xlsx"))
		rec := serve(t, app, http.MethodGet, "/api/dashboard")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, apierrors.TypeDatasetLoad, body["type"])
		assert.NotContains(t, body, "data")
	})

	t.Run("bad invoice date is a date parse error", func(t *testing.T) {
		path := testutil.NewSalesWorkbook().
			AddRow(testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "not a date", Region: "South", State: "Texas", City: "Houston", TotalSales: 1, UnitsSold: 1}).
			WriteFile(t, t.TempDir(), "bad.xlsx")
		app := newTestApp(t, path)

		rec := serve(t, app, http.MethodGet, "/api/dashboard")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, apierrors.TypeDatasetDate, decode(t, rec)["type"])
	})
}

func TestApplication_HealthAndReload(t *testing.T) {
	app := newTestApp(t, writeDataset(t))

	rec := serve(t, app, http.MethodGet, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before the first load")

	rec = serve(t, app, http.MethodPost, "/api/dataset/reload")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, app, http.MethodGet, "/api/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, app, http.MethodGet, "/api/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, app, http.MethodGet, "/api/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Version, decode(t, rec)["version"])
}

func TestApplication_Metrics(t *testing.T) {
	app := newTestApp(t, writeDataset(t))

	require.Equal(t, http.StatusOK, serve(t, app, http.MethodGet, "/api/sales/retailers").Code)

	rec := serve(t, app, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "dataset_loads_total")
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t, writeDataset(t))
	app.Config.Dataset.Preload = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel, ln))

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health/live")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Preload runs in the background.
	assert.Eventually(t, app.DashboardService.Loaded, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(context.Background()))
}

func TestComponents_ExportReport(t *testing.T) {
	source := writeDataset(t)
	cfg := testConfig(t, source)
	logger, _ := testutil.NewTestLogger(t)

	components := NewComponents(cfg, logger, nil)
	paths, err := components.ExportReport(context.Background(), source, cfg.Export.OutputDir)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{
		exporter.FileRetailerSales,
		exporter.FileMonthlySales,
		exporter.FileStateSales,
		exporter.FileRegionCitySales,
	}, names)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Retailer,TotalSales\n"))
	assert.Contains(t, string(data), "Foot Locker,150.00")
}
