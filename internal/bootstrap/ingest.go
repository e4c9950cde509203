package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/scraper/shl"
)

type IngestApp struct {
	Config   config.Config
	Ingestor *usecase.IngestCatalogUseCase

	cleanup closers
}

func NewIngest(ctx context.Context, cfg config.Config, logger *slog.Logger) (*IngestApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &IngestApp{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.cleanup.run()
		}
	}()

	catalog, err := openCatalog(ctx, cfg, &app.cleanup)
	if err != nil {
		return nil, err
	}

	var queue ports.MessageQueue
	if cfg.ScraperPublishEvent {
		q, err := openQueue(cfg, logger, &app.cleanup)
		if err != nil {
			return nil, err
		}
		queue = q
	}

	scraper := shl.New(shl.Config{
		BaseURL:       cfg.ScraperBaseURL,
		UserAgent:     cfg.ScraperUserAgent,
		Concurrency:   cfg.ScraperConcurrency,
		PageDelay:     time.Duration(cfg.ScraperPageDelayMS) * time.Millisecond,
		Timeout:       time.Duration(cfg.ScraperTimeoutSeconds) * time.Second,
		RetryAttempts: cfg.ScraperRetryAttempts,
	}, logger)

	app.Ingestor = usecase.NewIngestCatalogUseCase(scraper, catalog.sinks, queue, logger)
	ok = true
	return app, nil
}

func (a *IngestApp) Close() {
	a.cleanup.run()
}
