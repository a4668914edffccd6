package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/crypto/blake2b"

	"salesdash/internal/config"
	"salesdash/internal/dataprocessing"
	apierrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	customMiddleware "salesdash/internal/middleware"
	"salesdash/internal/services"
	handlers "salesdash/internal/transport/http"
)

// Version is overridden at link time with -ldflags "-X salesdash/internal/app.Version=...".
var Version = config.AppVersion

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	sum := blake2b.Sum256([]byte(Version + time.Now().Format("2006-01-02")))
	return hex.EncodeToString(sum[:])[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	ErrorHandler  *apierrors.ErrorHandler

	Components       *Components
	DashboardService *services.DashboardService
	HealthService    *services.HealthService

	Router *chi.Mux
	Server *http.Server
}

// Option customizes NewApplication.
type Option func(*Application)

// WithLogger replaces the process-wide logger, mainly for tests.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		a.Logger = logger
	}
}

// NewApplication wires every component from cfg. Nothing is fetched until
// the first request, or until Start when dataset preloading is enabled.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	app := &Application{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	if app.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.Logger = logger
	}

	app.Logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("dataset_source", cfg.Dataset.Source))

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.ServiceVersion = Version
	providers, err := infrastructure.InitializeOTel(otelCfg, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.OTelProviders = providers

	if providers.Meter != nil {
		metrics, err := infrastructure.CreateMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		app.Metrics = metrics
	}

	app.ErrorHandler = apierrors.NewErrorHandler(app.Logger, cfg.Logging.Development)

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	a.Components = NewComponents(a.Config, a.Logger, a.Metrics)

	a.DashboardService = services.NewDashboardService(
		a.Config.Dataset.Source,
		a.Components.Loader,
		a.Components.Summarizer,
		a.Components.Exporter,
		a.Logger,
	)

	a.HealthService = services.NewHealthService(
		Version,
		BuildTime,
		BuildID,
		a.DashboardService,
		a.Logger,
	)
}

// setupRouter configures the HTTP router with all routes.
// Ordering: RequestID, RealIP, OTel, Logger, Recoverer, then the rest.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.DefaultSecureHeaders().Handler)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
			a.ErrorHandler,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)

	// Prometheus scrape endpoint, outside /api and its timeout
	if a.OTelProviders.Registry != nil {
		r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.Registry))
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.AuditLog(a.Logger))
		r.Use(customMiddleware.Compress(5))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, a.Logger, a.ErrorHandler)
		r.Mount("/", dashboardHandler.Routes())
	})
}

// getCORSConfig builds the CORS policy from the security section.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		MaxAge:         300,
		Logger:         a.Logger,
	}

	a.Logger.Info("CORS configured",
		slog.Any("allowed_origins", cfg.AllowedOrigins))

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving on ln, or on the configured port when ln is nil.
// A serve failure cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
		}
	}

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if a.Config.Dataset.Preload {
		go a.preload(ctx)
	}

	return nil
}

// preload warms the dataset cache. Failures are logged; the next request
// retries since failed loads are never cached.
func (a *Application) preload(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.Config.Dataset.FetchTimeout)
	defer cancel()

	if _, err := a.DashboardService.Report(fetchCtx); err != nil {
		a.Logger.WarnContext(ctx, "Dataset preload failed",
			slog.String("source", a.Config.Dataset.Source),
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "Dataset preloaded",
		slog.String("source", a.Config.Dataset.Source))
}

// Stop drains the HTTP server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run starts the server and blocks until SIGINT, SIGTERM or a serve error.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop, nil); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	// ctx is already done; shutdown gets a fresh one
	return a.Stop(context.Background())
}

// Components are the dataset pipeline pieces shared by the server and the
// export command.
type Components struct {
	Loader     *dataprocessing.Loader
	Summarizer *dataprocessing.Summarizer
	Exporter   *exporter.SalesExporter
}

// NewComponents builds the loader, summarizer and exporter from cfg.
// metrics may be nil.
func NewComponents(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.Metrics) *Components {
	resolver := dataprocessing.NewSourceResolver(dataprocessing.SourceOptions{
		SheetName:             cfg.Dataset.SheetName,
		FetchTimeout:          cfg.Dataset.FetchTimeout,
		MaxBytes:              cfg.Dataset.MaxBytes,
		GoogleCredentialsFile: cfg.Dataset.GoogleCredentialsFile,
	}, logger)

	loader := dataprocessing.NewLoader(resolver, dataprocessing.NewParser(logger), logger,
		dataprocessing.WithMetrics(metrics),
		dataprocessing.WithFetchTimeout(cfg.Dataset.FetchTimeout),
	)

	summarizer := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{
		LastUpdatedLayout: config.LastUpdatedLayout,
		Metrics:           metrics,
	})

	salesExporter := exporter.NewSalesExporter(
		exporter.NewCSVWriter(cfg.Export.OutputDir, logger),
		logger,
		exporter.WithBOM(cfg.Export.BOM),
		exporter.WithExportMetrics(metrics),
	)

	return &Components{
		Loader:     loader,
		Summarizer: summarizer,
		Exporter:   salesExporter,
	}
}

// ExportReport loads source, summarizes it and writes the four CSV files
// into dir. It returns the written paths in table order.
func (c *Components) ExportReport(ctx context.Context, source, dir string) ([]string, error) {
	table, err := c.Loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	report, err := c.Summarizer.Summarize(ctx, table)
	if err != nil {
		return nil, err
	}

	return c.Exporter.ExportAll(ctx, report, dir)
}
