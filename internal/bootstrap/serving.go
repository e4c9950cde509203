package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/extractor/webpage"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/index/flat"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/index/tfidf"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/llm/rerankapi"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/assessment-recommender/internal/observability/metrics"
)

const probeTimeout = 60 * time.Second

// ServingApp holds the read-only state loaded once at startup. Any failure
// while building it means the process must not serve.
type ServingApp struct {
	Config      config.Config
	Manifest    domain.BuildManifest
	Recommender *usecase.RecommendUseCase
	Metrics     *metrics.HTTPServerMetrics
}

type ServingOption func(*servingOptions)

type servingOptions struct {
	settings *usecase.RetrievalSettings
}

// WithRetrievalSettings replaces the settings derived from config, as the
// offline evaluation does.
func WithRetrievalSettings(s usecase.RetrievalSettings) ServingOption {
	return func(o *servingOptions) { o.settings = &s }
}

func RetrievalSettings(cfg config.Config) usecase.RetrievalSettings {
	return usecase.RetrievalSettings{
		SparseK:        cfg.SparseK,
		DenseK:         cfg.DenseK,
		RRFK:           cfg.RRFK,
		CandidateLimit: cfg.CandidateLimit,
		FinalK:         cfg.FinalK,
	}
}

func NewServing(ctx context.Context, cfg config.Config, service string, logger *slog.Logger, opts ...ServingOption) (*ServingApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := servingOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	settings := RetrievalSettings(cfg)
	if options.settings != nil {
		settings = *options.settings
	}

	store, err := localfs.New(cfg.ArtifactsDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactLoad, "open artifact store", err)
	}
	bundle, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	lexical, err := tfidf.NewIndex(bundle.LexicalModel, bundle.LexicalMatrix)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactLoad, "load lexical index", err)
	}
	semantic, err := flat.NewIndex(bundle.Embeddings, bundle.Neighbors)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactLoad, "load neighbor index", err)
	}
	indices, err := usecase.NewIndexSet(bundle.Records, lexical, semantic)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel))
	if err := checkEncoder(probeCtx, embedder, bundle.Manifest); err != nil {
		return nil, err
	}

	reranker := rerankapi.New(cfg.RerankURL, cfg.RerankModel, time.Duration(cfg.RerankTimeoutSeconds)*time.Second)
	if err := reranker.Probe(probeCtx); err != nil {
		return nil, err
	}

	extractor := webpage.New(
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
		webpage.WithMaxBytes(int64(cfg.FetchMaxBytes)),
	)

	serverMetrics := metrics.NewHTTPServerMetrics(service)
	recommender := usecase.NewRecommendUseCase(
		indices,
		embedder,
		reranker,
		extractor,
		settings,
		usecase.WithRecommendObserver(serverMetrics),
		usecase.WithRecommendLogger(logger),
	)

	logger.Info("serving_state_loaded",
		"build_id", bundle.Manifest.BuildID,
		"records", indices.Len(),
		"vocabulary_size", lexical.VocabularySize(),
		"embedding_dim", semantic.Dim(),
		"encoder_model", bundle.Manifest.EncoderModel,
	)

	return &ServingApp{
		Config:      cfg,
		Manifest:    bundle.Manifest,
		Recommender: recommender,
		Metrics:     serverMetrics,
	}, nil
}

// checkEncoder fails when the live encoder cannot produce vectors comparable
// to the stored embeddings.
func checkEncoder(ctx context.Context, embedder *ollama.Embedder, manifest domain.BuildManifest) error {
	dim, err := embedder.Probe(ctx)
	if err != nil {
		return err
	}
	if manifest.EncoderModel != "" && manifest.EncoderModel != embedder.ModelID() {
		return domain.WrapError(domain.ErrModelUnavailable, "check encoder", fmt.Errorf(
			"artifacts were built with %s, configured encoder is %s", manifest.EncoderModel, embedder.ModelID(),
		))
	}
	if dim != manifest.EmbeddingDim {
		return domain.WrapError(domain.ErrModelUnavailable, "check encoder", fmt.Errorf(
			"encoder returns %d dimensions, artifacts hold %d", dim, manifest.EmbeddingDim,
		))
	}
	return nil
}
