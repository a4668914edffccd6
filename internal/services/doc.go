// Package services implements the business logic layer of the sales
// dashboard. Handlers call services; services call the dataset loader, the
// summarizer and the exporter.
//
// # Available Services
//
//	- DashboardService: loads the dataset and renders derived tables
//	- HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Sentinel errors (ErrUnknownTable, ErrInvalidSort) mark bad requests.
// Dataset and aggregation failures pass through as *errors.AppError values
// so the HTTP layer can map them to problem responses.
package services
