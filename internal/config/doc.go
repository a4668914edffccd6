// Package config loads the sales dashboard configuration.
//
// # Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default()
//	2. A YAML file (SALES_CONFIG_FILE, or salesdash.yaml / configs/salesdash.yaml)
//	3. Environment variables prefixed with SALES_
//
// Binaries call LoadDotEnv before Load so a local .env file can provide
// environment variables during development.
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	SALES_SERVER_PORT=8080
//	SALES_DATASET_SOURCE=https://example.com/sales.xlsx
//	SALES_DATASET_SOURCE=gsheets://<spreadsheet-id>/Data
//	SALES_DATASET_FETCH_TIMEOUT=30s
//	SALES_EXPORT_OUTPUT_DIR=data/reports
//	SALES_LOGGING_LEVEL=debug
//
// # Validation
//
// Load validates the merged configuration with struct tags and returns the
// first violated constraint.
package config
