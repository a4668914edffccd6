package dataprocessing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	apperrors "salesdash/internal/errors"
)

// SheetsScheme prefixes Google Sheets source identifiers:
// gsheets://<spreadsheetID>/<sheet name>.
const SheetsScheme = "gsheets://"

// Sheet is the raw cell grid of one worksheet.
type Sheet struct {
	Name     string
	Rows     [][]string
	Date1904 bool
}

// Source yields the worksheets of one dataset. ID is the cache key.
type Source interface {
	ID() string
	Sheets(ctx context.Context) ([]Sheet, error)
}

// ReadWorkbook decodes xlsx bytes into raw sheets. Cells are returned
// unformatted so date cells come back as serial numbers. An empty
// sheetName reads every worksheet in workbook order.
func ReadWorkbook(r io.Reader, sheetName string) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	names := f.GetSheetList()
	if sheetName != "" {
		if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
			return nil, fmt.Errorf("worksheet %q not found", sheetName)
		}
		names = []string{sheetName}
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read worksheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows, Date1904: date1904})
	}
	return sheets, nil
}

// HTTPSource downloads a workbook over http(s).
type HTTPSource struct {
	URL       string
	SheetName string
	Client    *http.Client
	MaxBytes  int64
}

func (s *HTTPSource) ID() string { return s.URL }

func (s *HTTPSource) Sheets(ctx context.Context) ([]Sheet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, apperrors.NewLoadError(s.URL, "build request", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewLoadError(s.URL, "fetch dataset", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewLoadError(s.URL, fmt.Sprintf("dataset returned HTTP %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if s.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, s.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.NewLoadError(s.URL, "read dataset body", err)
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return nil, apperrors.NewLoadError(s.URL, fmt.Sprintf("dataset exceeds %d bytes", s.MaxBytes), nil)
	}

	sheets, err := ReadWorkbook(bytes.NewReader(data), s.SheetName)
	if err != nil {
		return nil, apperrors.NewLoadError(s.URL, "decode workbook", err)
	}
	return sheets, nil
}

// FileSource reads a workbook from the local filesystem.
type FileSource struct {
	Path      string
	SheetName string
}

func (s *FileSource) ID() string { return s.Path }

func (s *FileSource) Sheets(ctx context.Context) ([]Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, apperrors.NewLoadError(s.Path, "open dataset file", err)
	}
	defer f.Close()

	sheets, err := ReadWorkbook(f, s.SheetName)
	if err != nil {
		return nil, apperrors.NewLoadError(s.Path, "decode workbook", err)
	}
	return sheets, nil
}

// SheetsSource reads one tab of a Google spreadsheet. Values are requested
// unformatted with dates as serial numbers so they decode like xlsx cells.
type SheetsSource struct {
	Service       *gsheet.Service
	SpreadsheetID string
	SheetName     string
}

func (s *SheetsSource) ID() string {
	return SheetsScheme + s.SpreadsheetID + "/" + s.SheetName
}

func (s *SheetsSource) Sheets(ctx context.Context) ([]Sheet, error) {
	if s.Service == nil {
		return nil, apperrors.NewLoadError(s.ID(), "sheets service not initialized", nil)
	}

	resp, err := s.Service.Spreadsheets.Values.Get(s.SpreadsheetID, s.SheetName).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewLoadError(s.ID(), "read spreadsheet values", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = sheetCellString(v)
		}
		rows[i] = cells
	}

	return []Sheet{{Name: s.SheetName, Rows: rows}}, nil
}

func sheetCellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// SourceOptions configures how identifiers are resolved to sources.
type SourceOptions struct {
	SheetName             string
	FetchTimeout          time.Duration
	MaxBytes              int64
	GoogleCredentialsFile string
	HTTPClient            *http.Client

	// SheetsOptions replace the credential options when set.
	SheetsOptions []goption.ClientOption
}

// SourceResolver maps identifiers to Source implementations. The Sheets
// service is created on first use.
type SourceResolver struct {
	opts   SourceOptions
	logger *slog.Logger
	client *http.Client

	sheetsOnce sync.Once
	sheetsSvc  *gsheet.Service
	sheetsErr  error
}

// NewSourceResolver creates a resolver.
func NewSourceResolver(opts SourceOptions, logger *slog.Logger) *SourceResolver {
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &SourceResolver{
		opts:   opts,
		logger: logger.With(slog.String("component", "source_resolver")),
		client: client,
	}
}

// Resolve returns the Source for id: http(s) URLs, gsheets:// identifiers
// and local paths (optionally file://).
func (r *SourceResolver) Resolve(ctx context.Context, id string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewLoadError(id, "empty dataset source", nil)
	}

	switch {
	case strings.HasPrefix(id, SheetsScheme):
		rest := strings.TrimPrefix(id, SheetsScheme)
		spreadsheetID, sheetName, ok := strings.Cut(rest, "/")
		if !ok || spreadsheetID == "" || sheetName == "" {
			return nil, apperrors.NewLoadError(id, "sheets source must be gsheets://<spreadsheet-id>/<sheet>", nil)
		}
		if unescaped, err := url.PathUnescape(sheetName); err == nil {
			sheetName = unescaped
		}
		svc, err := r.sheetsService(ctx)
		if err != nil {
			return nil, apperrors.NewLoadError(id, "create sheets service", err)
		}
		return &SheetsSource{Service: svc, SpreadsheetID: spreadsheetID, SheetName: sheetName}, nil

	case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
		if _, err := url.ParseRequestURI(id); err != nil {
			return nil, apperrors.NewLoadError(id, "invalid dataset URL", err)
		}
		return &HTTPSource{URL: id, SheetName: r.opts.SheetName, Client: r.client, MaxBytes: r.opts.MaxBytes}, nil

	case strings.HasPrefix(id, "file://"):
		return &FileSource{Path: filepath.FromSlash(strings.TrimPrefix(id, "file://")), SheetName: r.opts.SheetName}, nil

	default:
		return &FileSource{Path: id, SheetName: r.opts.SheetName}, nil
	}
}

func (r *SourceResolver) sheetsService(ctx context.Context) (*gsheet.Service, error) {
	r.sheetsOnce.Do(func() {
		opts := r.opts.SheetsOptions
		if len(opts) == 0 {
			opts = []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsReadonlyScope)}
			if r.opts.GoogleCredentialsFile != "" {
				creds, err := os.ReadFile(r.opts.GoogleCredentialsFile)
				if err != nil {
					r.sheetsErr = fmt.Errorf("read credentials file: %w", err)
					return
				}
				opts = append(opts, goption.WithCredentialsJSON(creds))
			}
		}

		r.logger.InfoContext(ctx, "creating Google Sheets service",
			slog.Bool("credentials_file", r.opts.GoogleCredentialsFile != ""))
		// The service outlives this request.
		r.sheetsSvc, r.sheetsErr = gsheet.NewService(context.WithoutCancel(ctx), opts...)
	})
	return r.sheetsSvc, r.sheetsErr
}
