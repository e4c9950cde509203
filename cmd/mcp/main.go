package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/assessment-recommender/internal/adapters/mcp"
	"github.com/kirillkom/assessment-recommender/internal/bootstrap"
	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "1.0.0"
)

// stdout carries the MCP protocol, so logs go to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.NewServing(context.Background(), cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	if err := mcpadapter.New(app.Recommender, logger).ServeStdio(version); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
