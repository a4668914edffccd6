// Package dataprocessing loads the sales workbook and derives the
// dashboard tables from it.
//
// # Components
//
//  1. Source: yields raw worksheets from an http(s) URL, a local file or a
//     Google Sheets tab (gsheets://<spreadsheet-id>/<sheet>).
//  2. Parser: locates the header row naming Retailer, InvoiceDate, Region,
//     State, City, TotalSales and UnitsSold, coerces InvoiceDate and builds
//     an immutable domain.SalesTable.
//  3. Loader: caches one SalesTable per source identifier. Concurrent first
//     loads share one fetch; Invalidate and Clear drop entries.
//  4. Summarizer: runs RetailerSales, MonthlySales, StateSales and
//     RegionCitySales concurrently and bundles them into a SalesReport.
//
// # Usage
//
//	resolver := dataprocessing.NewSourceResolver(dataprocessing.SourceOptions{FetchTimeout: 30 * time.Second}, logger)
//	loader := dataprocessing.NewLoader(resolver, dataprocessing.NewParser(logger), logger)
//	table, err := loader.Load(ctx, "https://example.com/sales.xlsx")
//	if err != nil {
//	    return err
//	}
//	report, err := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{}).Summarize(ctx, table)
//
// # Errors
//
// Load failures are *errors.AppError values of type LOAD, a bad InvoiceDate
// is DATE_PARSE (with row and value in the error context) and grouping or
// formatting failures are AGGREGATION. Failed loads are never cached.
package dataprocessing
