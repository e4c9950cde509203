package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/catalog/jsonfile"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/resilience"
)

type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

type catalogStores struct {
	source ports.CatalogSource
	sinks  []ports.CatalogSink
}

// openCatalog returns the configured record source. The JSON file is always a
// sink so a Postgres-backed deployment still leaves a file snapshot behind.
func openCatalog(ctx context.Context, cfg config.Config, cleanup *closers) (catalogStores, error) {
	file := jsonfile.New(cfg.CatalogPath)

	switch cfg.CatalogSource {
	case "", config.CatalogSourceFile:
		return catalogStores{source: file, sinks: []ports.CatalogSink{file}}, nil
	case config.CatalogSourcePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return catalogStores{}, fmt.Errorf("open postgres: %w", err)
		}
		*cleanup = append(*cleanup, func() { _ = db.Close() })

		repo := postgres.NewCatalogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return catalogStores{}, fmt.Errorf("ensure schema: %w", err)
		}
		return catalogStores{source: repo, sinks: []ports.CatalogSink{file, repo}}, nil
	default:
		return catalogStores{}, fmt.Errorf("unknown CATALOG_SOURCE %q", cfg.CatalogSource)
	}
}

func openQueue(cfg config.Config, logger *slog.Logger, cleanup *closers) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger)),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	*cleanup = append(*cleanup, queue.Close)
	return queue, nil
}
