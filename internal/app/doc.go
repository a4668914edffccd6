// Package app wires the sales dashboard together and owns its lifecycle.
//
// NewApplication builds, in order: the logger, OpenTelemetry providers and
// instruments, the dataset components (source resolver, loader, summarizer,
// CSV exporter), the dashboard and health services, and finally the chi
// router and http.Server.
//
// # Routes
//
//	GET  /api/dashboard              all four tables with chart hints
//	GET  /api/sales/{table}          one table (retailers, monthly, states, region-city)
//	GET  /api/sales/{table}/csv      CSV download
//	POST /api/dataset/reload         drop the cached dataset and load it again
//	GET  /api/dataset/stats          loader cache counters
//	GET  /api/health[/ready|/live]   health probes
//	GET  /api/version                build information
//	GET  /metrics                    Prometheus scrape endpoint
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests and
// flushes telemetry. Errors are returned to the caller; the package never
// calls os.Exit.
//
// Components is also used on its own by the export command, which needs the
// pipeline but not the server.
package app
