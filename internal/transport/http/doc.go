// Package http implements the HTTP handlers of the sales dashboard. Handlers
// stay thin: they parse the request, call a service and render the result.
//
// # Endpoints
//
//	GET  /api/dashboard              all four tables with chart hints
//	GET  /api/sales/{table}          one table; ?sort=sales_desc for region-city
//	GET  /api/sales/{table}/csv      CSV download (RetailerSales.csv, MonthlySales.csv, ...)
//	POST /api/dataset/reload         drop the cached dataset and load it again
//	GET  /api/dataset/stats          loader cache counters
//	GET  /api/health[/ready|/live]   health checks
//	GET  /api/version                build information
//	GET  /metrics                    Prometheus exposition
//
// Table names are retailers, monthly, states and region-city.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/dataset/load-failed",
//	    "title": "Dataset Load Failed",
//	    "status": 502,
//	    "detail": "dataset returned HTTP 404",
//	    "instance": "/api/dashboard"
//	}
//
// A failed load or aggregation fails the whole response; partial tables are
// never rendered.
//
// # Testing
//
// Handlers are tested with httptest against a mocked DashboardServiceInterface.
package http
