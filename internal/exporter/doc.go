// Package exporter renders the derived sales tables as CSV.
//
// CSVWriter is the low-level writer: headers, records and an optional
// UTF-8 BOM for Excel, either to a file under a base directory or to any
// io.Writer.
//
// SalesExporter maps each derived table to its download file and columns:
//
//	retailers    RetailerSales.csv       Retailer,TotalSales
//	monthly      MonthlySales.csv        Month_Year,TotalSales
//	states       Sales_by_UnitsSold.csv  State,TotalSales,UnitsSold
//	region-city  RegionCitySales.csv     Region,City,TotalSales,Total Sales (Formatted)
//
// Example usage:
//
//	exp := exporter.NewSalesExporter(exporter.NewCSVWriter("data/reports", logger), logger)
//	paths, err := exp.ExportAll(ctx, report, "")
package exporter
