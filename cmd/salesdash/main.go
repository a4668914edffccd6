package main

import (
	"flag"
	"log/slog"
	"os"

	"salesdash/internal/app"
	"salesdash/internal/config"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to salesdash.yaml or configs/salesdash.yaml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading SALES_* variables")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("Failed to load env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
