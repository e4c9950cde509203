package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/assessment-recommender/internal/bootstrap"
	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/observability/logging"
)

const serviceName = "scraper"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIngest(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	records, err := app.Ingestor.Ingest(ctx)
	app.Close()
	if err != nil {
		logger.Error("catalog_ingest_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog_written", "path", cfg.CatalogPath, "records", len(records))
}
