// Command salesexport loads the sales workbook once and writes the four
// aggregate CSV files into a directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"salesdash/internal/app"
	"salesdash/internal/config"
	"salesdash/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		slog.Error("Export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run parses args, exports, and prints one written path per line to out.
// A nil logger means the configured process logger.
func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("salesexport", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("source", "", "dataset source: http(s) URL, local .xlsx path or gsheets://<id>/<sheet> (defaults to config)")
	outDir := fs.String("out", "", "output directory (defaults to config export.output_dir)")
	bom := fs.Bool("bom", false, "prefix each file with a UTF-8 byte order mark")
	configFile := fs.String("config", "", "YAML config file")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before reading SALES_* variables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *source != "" {
		cfg.Dataset.Source = *source
	}
	if *outDir != "" {
		cfg.Export.OutputDir = *outDir
	}
	if *bom {
		cfg.Export.BOM = true
	}

	if logger == nil {
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer infrastructure.CloseLogFile()
	}

	logger.InfoContext(ctx, "Starting sales export",
		slog.String("source", cfg.Dataset.Source),
		slog.String("output_dir", cfg.Export.OutputDir),
		slog.Bool("bom", cfg.Export.BOM))

	components := app.NewComponents(cfg, logger, nil)
	paths, err := components.ExportReport(ctx, cfg.Dataset.Source, cfg.Export.OutputDir)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(out, p)
	}

	logger.InfoContext(ctx, "Sales export complete", slog.Int("files", len(paths)))
	return nil
}
