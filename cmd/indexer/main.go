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

const serviceName = "indexer"

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

	app, err := bootstrap.NewBuilder(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	manifest, err := app.Build(ctx)
	app.Close()
	if err != nil {
		logger.Error("index_build_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("artifacts_written", "dir", cfg.ArtifactsDir, "build_id", manifest.BuildID)
}
