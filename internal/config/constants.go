package config

import "time"

// Application constants
const (
	AppName    = "Sales Dashboard"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. SALES_SERVER_PORT.
	EnvPrefix = "SALES"

	DefaultPort           = 8080
	DefaultRequestTimeout = 60 * time.Second

	// Rate limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Dataset
	DefaultDatasetSource   = "https://raw.githubusercontent.com/EdidiongEkpoh/Portfolio/main/Adidas/Adidas.xlsx"
	DefaultFetchTimeout    = 30 * time.Second
	DefaultMaxDatasetBytes = 64 << 20

	DefaultReportsDir = "data/reports"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// LastUpdatedLayout renders the dataset load time on the dashboard.
	LastUpdatedLayout = "02 January 2006"
)
