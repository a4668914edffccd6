package dataprocessing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/shared/testutil"
)

func sampleWorkbook() *testutil.SalesWorkbook {
	return testutil.NewSalesWorkbook().AddRow(
		testutil.SalesRow{Retailer: "Foot Locker", InvoiceDate: "2020-01-01", Region: "Northeast", State: "New York", City: "New York", TotalSales: 600000, UnitsSold: 1200},
		testutil.SalesRow{Retailer: "Walmart", InvoiceDate: "2020-01-02", Region: "South", State: "Texas", City: "Houston", TotalSales: 500, UnitsSold: 10},
	)
}

func TestHTTPSource(t *testing.T) {
	payload := sampleWorkbook().MustBytes(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Adidas.xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			_, _ = w.Write(payload)
		case "/garbage.xlsx":
			_, _ = w.Write([]byte("not a workbook"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name       string
		path       string
		maxBytes   int64
		wantErr    bool
		wantStatus int
	}{
		{name: "ok", path: "/Adidas.xlsx"},
		{name: "not found", path: "/missing.xlsx", wantErr: true, wantStatus: http.StatusNotFound},
		{name: "too large", path: "/Adidas.xlsx", maxBytes: 10, wantErr: true},
		{name: "not a workbook", path: "/garbage.xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &HTTPSource{URL: srv.URL + tt.path, Client: srv.Client(), MaxBytes: tt.maxBytes}
			assert.Equal(t, srv.URL+tt.path, src.ID())

			sheets, err := src.Sheets(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsLoadError(err))
				if tt.wantStatus != 0 {
					var appErr *apperrors.AppError
					require.ErrorAs(t, err, &appErr)
					assert.Equal(t, tt.wantStatus, appErr.Context["status"])
				}
				return
			}
			require.NoError(t, err)
			require.Len(t, sheets, 1)
			assert.Equal(t, "Data Sales (Adidas)", sheets[0].Name)
			assert.Len(t, sheets[0].Rows, 3)
		})
	}
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/Adidas.xlsx"
	srv.Close()

	_, err := (&HTTPSource{URL: url}).Sheets(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsLoadError(err))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := sampleWorkbook().WriteFile(t, dir, "sales.xlsx")

	sheets, err := (&FileSource{Path: path}).Sheets(context.Background())
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Foot Locker", sheets[0].Rows[1][0])

	_, err = (&FileSource{Path: filepath.Join(dir, "nope.xlsx")}).Sheets(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsLoadError(err))
}

func newFakeSheetsServer(t *testing.T, values [][]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v4/spreadsheets/sheet-123/values/") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		assert.Equal(t, "SERIAL_NUMBER", r.URL.Query().Get("dateTimeRenderOption"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "Data!A1:G3",
			"majorDimension": "ROWS",
			"values":         values,
		})
	}))
}

func TestSourceResolver(t *testing.T) {
	sheetsSrv := newFakeSheetsServer(t, [][]interface{}{
		{"Retailer", "InvoiceDate", "Region", "State", "City", "TotalSales", "UnitsSold"},
		{"Amazon", 43831, "West", "Washington", "Seattle", 1250.5, 25},
	})
	defer sheetsSrv.Close()

	resolver := NewSourceResolver(SourceOptions{
		SheetsOptions: []goption.ClientOption{
			goption.WithEndpoint(sheetsSrv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	}, nil)

	tests := []struct {
		name    string
		id      string
		want    interface{}
		wantErr bool
	}{
		{name: "https", id: "https://example.com/Adidas.xlsx", want: &HTTPSource{}},
		{name: "http", id: "http://example.com/Adidas.xlsx", want: &HTTPSource{}},
		{name: "file url", id: "file:///tmp/Adidas.xlsx", want: &FileSource{}},
		{name: "plain path", id: "data/Adidas.xlsx", want: &FileSource{}},
		{name: "sheets", id: "gsheets://sheet-123/Data", want: &SheetsSource{}},
		{name: "sheets without tab", id: "gsheets://sheet-123", wantErr: true},
		{name: "empty", id: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := resolver.Resolve(context.Background(), tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsLoadError(err))
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}

	t.Run("file url path", func(t *testing.T) {
		src, err := resolver.Resolve(context.Background(), "file:///tmp/Adidas.xlsx")
		require.NoError(t, err)
		assert.Equal(t, filepath.FromSlash("/tmp/Adidas.xlsx"), src.ID())
	})

	t.Run("sheets source parses", func(t *testing.T) {
		src, err := resolver.Resolve(context.Background(), "gsheets://sheet-123/Data")
		require.NoError(t, err)
		assert.Equal(t, "gsheets://sheet-123/Data", src.ID())

		sheets, err := src.Sheets(context.Background())
		require.NoError(t, err)
		require.Len(t, sheets, 1)
		assert.Equal(t, []string{"Amazon", "43831", "West", "Washington", "Seattle", "1250.5", "25"}, sheets[0].Rows[1])

		table, err := NewParser(nil).Parse(context.Background(), src.ID(), sheets)
		require.NoError(t, err)
		require.Equal(t, 1, table.Len())
		assert.Equal(t, "2020-01-01", table.Rows()[0].InvoiceDate.Format("2006-01-02"))
	})
}

func TestSheetCellString(t *testing.T) {
	assert.Equal(t, "", sheetCellString(nil))
	assert.Equal(t, "abc", sheetCellString("abc"))
	assert.Equal(t, "1250.5", sheetCellString(1250.5))
	assert.Equal(t, "43831", sheetCellString(float64(43831)))
	assert.Equal(t, "true", sheetCellString(true))
}
