package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/cache/badgerstore"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/index/tfidf"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/resilience"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/assessment-recommender/internal/observability/metrics"
)

type BuilderApp struct {
	Config  config.Config
	Builder *usecase.BuildIndexUseCase
	Metrics *metrics.WorkerMetrics
	// Queue is set only when the builder was opened with a subscription.
	Queue *nats.Queue

	cleanup closers
}

type BuilderOption func(*builderOptions)

type builderOptions struct {
	subscribe bool
}

// WithSubscription connects to NATS so the caller can rebuild on catalog events.
func WithSubscription() BuilderOption {
	return func(o *builderOptions) { o.subscribe = true }
}

func NewBuilder(ctx context.Context, cfg config.Config, service string, logger *slog.Logger, opts ...BuilderOption) (*BuilderApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := builderOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	app := &BuilderApp{Config: cfg}
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

	store, err := localfs.New(cfg.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.EncoderBuildConfig(), resilience.WithLogger(logger))
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel), ollama.WithExecutor(executor))

	app.Metrics = metrics.NewWorkerMetrics(service)
	buildOpts := []usecase.BuildOption{
		usecase.WithEmbedBatchSize(cfg.EmbedBatchSize),
		usecase.WithBuildObserver(app.Metrics),
		usecase.WithBuildLogger(logger),
	}
	if cfg.EmbedCachePath != "" {
		cache, err := badgerstore.Open(cfg.EmbedCachePath, logger)
		if err != nil {
			return nil, err
		}
		app.cleanup = append(app.cleanup, func() { _ = cache.Close() })
		buildOpts = append(buildOpts, usecase.WithEmbeddingCache(cache))
	}

	app.Builder = usecase.NewBuildIndexUseCase(
		catalog.source,
		tfidf.NewVectorizer(cfg.TFIDFMaxFeatures),
		embedder,
		store,
		buildOpts...,
	)

	if options.subscribe {
		queue, err := openQueue(cfg, logger, &app.cleanup)
		if err != nil {
			return nil, err
		}
		app.Queue = queue
	}

	ok = true
	return app, nil
}

// Build runs one full rebuild and records it in the worker metrics.
func (a *BuilderApp) Build(ctx context.Context) (*domain.BuildManifest, error) {
	a.Metrics.StartBuild()
	return a.Builder.Build(ctx)
}

func (a *BuilderApp) Close() {
	a.cleanup.run()
}
