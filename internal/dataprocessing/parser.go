package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "salesdash/internal/errors"
	"salesdash/pkg/contracts/domain"
)

// DefaultHeaderScanRows bounds how far down a sheet the header is searched.
const DefaultHeaderScanRows = 20

// Parser turns raw worksheets into a SalesTable.
type Parser struct {
	logger         *slog.Logger
	headerScanRows int
	now            func() time.Time
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:         logger.With(slog.String("component", "parser")),
		headerScanRows: DefaultHeaderScanRows,
		now:            time.Now,
	}
}

// headerMatch is the outcome of a header search in one sheet.
type headerMatch struct {
	sheet     string
	row       int
	columnMap map[string]int
	missing   []string
}

// findHeader returns the first row among the first limit rows that names
// every required column. When none does, the row naming the most columns
// is returned with row == -1 and the names it lacks.
func findHeader(sheet string, rows [][]string, limit int) headerMatch {
	best := headerMatch{sheet: sheet, row: -1, missing: domain.RequiredColumns}

	for i := 0; i < len(rows) && i < limit; i++ {
		columnMap := make(map[string]int, len(rows[i]))
		for j, cell := range rows[i] {
			name := strings.TrimSpace(cell)
			if _, seen := columnMap[name]; name != "" && !seen {
				columnMap[name] = j
			}
		}

		var missing []string
		for _, col := range domain.RequiredColumns {
			if _, ok := columnMap[col]; !ok {
				missing = append(missing, col)
			}
		}

		if len(missing) == 0 {
			return headerMatch{sheet: sheet, row: i, columnMap: columnMap}
		}
		if len(missing) < len(best.missing) {
			best = headerMatch{sheet: sheet, row: -1, columnMap: columnMap, missing: missing}
		}
	}
	return best
}

// Parse selects the first sheet whose header names all seven columns and
// converts its data rows. Fully blank rows are skipped. Empty numeric
// cells count as zero; an InvoiceDate that cannot be coerced fails the
// whole parse.
func (p *Parser) Parse(ctx context.Context, source string, sheets []Sheet) (*domain.SalesTable, error) {
	if len(sheets) == 0 {
		return nil, apperrors.NewLoadError(source, "workbook has no worksheets", nil)
	}

	var match headerMatch
	var data Sheet
	best := headerMatch{row: -1, missing: domain.RequiredColumns}
	for _, sheet := range sheets {
		m := findHeader(sheet.Name, sheet.Rows, p.headerScanRows)
		if m.row >= 0 {
			match, data = m, sheet
			break
		}
		if len(m.missing) < len(best.missing) {
			best = m
		}
	}

	if match.columnMap == nil {
		return nil, apperrors.NewLoadError(source,
			fmt.Sprintf("no worksheet has all required columns; missing %s", strings.Join(best.missing, ", ")), nil).
			WithContext("missing_columns", best.missing)
	}

	p.logger.InfoContext(ctx, "found sales header",
		slog.String("source", source),
		slog.String("sheet", match.sheet),
		slog.Int("header_row", match.row+1),
		slog.Int("total_rows", len(data.Rows)))

	columnMap := match.columnMap
	rows := make([]domain.Transaction, 0, len(data.Rows)-match.row-1)

	for i := match.row + 1; i < len(data.Rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := data.Rows[i]
		if isBlankRow(row) {
			continue
		}
		// Worksheet rows are 1-based.
		rowNum := i + 1

		getString := func(col string) string {
			if idx := columnMap[col]; idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		parseDecimal := func(col string) (decimal.Decimal, error) {
			raw := strings.ReplaceAll(getString(col), ",", "")
			if raw == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return decimal.Zero, apperrors.NewLoadError(source,
					fmt.Sprintf("invalid %s %q at row %d", col, raw, rowNum), err).
					WithContext("row", rowNum)
			}
			return d, nil
		}

		invoiceRaw := getString(domain.ColumnInvoiceDate)
		invoiceDate, err := CoerceInvoiceDate(invoiceRaw, data.Date1904)
		if err != nil {
			return nil, apperrors.NewDateParseError(rowNum, invoiceRaw, err).WithContext("source", source)
		}

		totalSales, err := parseDecimal(domain.ColumnTotalSales)
		if err != nil {
			return nil, err
		}

		units, err := parseDecimal(domain.ColumnUnitsSold)
		if err != nil {
			return nil, err
		}
		if !units.Equal(units.Truncate(0)) {
			return nil, apperrors.NewLoadError(source,
				fmt.Sprintf("invalid %s %q at row %d: not a whole number", domain.ColumnUnitsSold, units.String(), rowNum), nil).
				WithContext("row", rowNum)
		}

		rows = append(rows, domain.Transaction{
			Retailer:    getString(domain.ColumnRetailer),
			InvoiceDate: invoiceDate,
			Region:      getString(domain.ColumnRegion),
			State:       getString(domain.ColumnState),
			City:        getString(domain.ColumnCity),
			TotalSales:  totalSales,
			UnitsSold:   units.IntPart(),
		})
	}

	columns := make([]string, 0, len(columnMap))
	for name := range columnMap {
		columns = append(columns, name)
	}

	p.logger.InfoContext(ctx, "parsed sales rows",
		slog.String("source", source),
		slog.Int("rows", len(rows)))

	return domain.NewSalesTable(source, p.now(), columns, rows), nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
