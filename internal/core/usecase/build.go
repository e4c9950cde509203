package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// BuildStats describes one finished build attempt for observers.
type BuildStats struct {
	Records  int
	Cached   int
	Duration time.Duration
	Err      error
}

type BuildObserver interface {
	ObserveBuild(stats BuildStats)
}

type BuildOption func(*BuildIndexUseCase)

func WithEmbeddingCache(cache ports.EmbeddingCache) BuildOption {
	return func(uc *BuildIndexUseCase) { uc.cache = cache }
}

func WithEmbedBatchSize(size int) BuildOption {
	return func(uc *BuildIndexUseCase) {
		if size > 0 {
			uc.batchSize = size
		}
	}
}

func WithBuildObserver(observer BuildObserver) BuildOption {
	return func(uc *BuildIndexUseCase) { uc.observer = observer }
}

func WithBuildLogger(logger *slog.Logger) BuildOption {
	return func(uc *BuildIndexUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

// BuildIndexUseCase regenerates every serving artifact from the ingested
// record list in one pass. Partial rebuilds are not possible through it.
type BuildIndexUseCase struct {
	source    ports.CatalogSource
	fitter    ports.LexicalFitter
	embedder  ports.Embedder
	store     ports.ArtifactStore
	cache     ports.EmbeddingCache
	observer  BuildObserver
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

func NewBuildIndexUseCase(
	source ports.CatalogSource,
	fitter ports.LexicalFitter,
	embedder ports.Embedder,
	store ports.ArtifactStore,
	opts ...BuildOption,
) *BuildIndexUseCase {
	uc := &BuildIndexUseCase{
		source:    source,
		fitter:    fitter,
		embedder:  embedder,
		store:     store,
		logger:    slog.Default(),
		batchSize: defaultEmbedBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *BuildIndexUseCase) Build(ctx context.Context) (*domain.BuildManifest, error) {
	start := time.Now()
	stats := BuildStats{}
	manifest, err := uc.build(ctx, &stats)

	stats.Duration = time.Since(start)
	stats.Err = err
	if uc.observer != nil {
		uc.observer.ObserveBuild(stats)
	}
	if err != nil {
		return nil, err
	}
	uc.logger.Info("index_build_completed",
		"build_id", manifest.BuildID,
		"records", manifest.RecordCount,
		"vocabulary_size", manifest.VocabularySize,
		"embedding_dim", manifest.EmbeddingDim,
		"cached_embeddings", stats.Cached,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return manifest, nil
}

func (uc *BuildIndexUseCase) build(ctx context.Context, stats *BuildStats) (*domain.BuildManifest, error) {
	records, err := uc.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	stats.Records = len(records)
	texts := domain.IndexTexts(records)
	fingerprint := domain.RecordsFingerprint(records)

	model, matrix, err := uc.fitter.Fit(texts)
	if err != nil {
		return nil, fmt.Errorf("fit lexical model: %w", err)
	}

	embeddings, cached, err := uc.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	stats.Cached = cached

	neighbors, err := domain.NewNeighborIndexSpec(embeddings, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fit neighbor index: %w", err)
	}

	bundle := &domain.ArtifactBundle{
		Manifest: domain.BuildManifest{
			BuildID:        uuid.NewString(),
			CreatedAt:      uc.now(),
			RecordCount:    len(records),
			VocabularySize: model.VocabularySize(),
			EmbeddingDim:   embeddings.Dim,
			EncoderModel:   uc.embedder.ModelID(),
			Fingerprint:    fingerprint,
		},
		Records:       records,
		LexicalModel:  model,
		LexicalMatrix: matrix,
		Embeddings:    embeddings,
		Neighbors:     neighbors,
	}
	if err := bundle.CheckAlignment(); err != nil {
		return nil, fmt.Errorf("check artifact alignment: %w", err)
	}
	if err := uc.store.Save(ctx, bundle); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}
	return &bundle.Manifest, nil
}

func (uc *BuildIndexUseCase) loadRecords(ctx context.Context) ([]domain.CatalogRecord, error) {
	raw, err := uc.source.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog records: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load catalog records", errors.New("catalog is empty"))
	}
	records, err := domain.NormalizeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize catalog records: %w", err)
	}
	return records, nil
}

// embedAll returns one row per text, reusing cached vectors where present.
func (uc *BuildIndexUseCase) embedAll(ctx context.Context, texts []string) (domain.DenseMatrix, int, error) {
	vectors := make([][]float32, len(texts))
	model := uc.embedder.ModelID()

	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if uc.cache == nil {
			missing = append(missing, i)
			continue
		}
		v, ok, err := uc.cache.Get(ctx, model, text)
		if err != nil {
			uc.logger.Warn("embedding_cache_get_failed", "row", i, "error", err)
		}
		if err != nil || !ok {
			missing = append(missing, i)
			continue
		}
		vectors[i] = v
	}
	cached := len(texts) - len(missing)

	for lo := 0; lo < len(missing); lo += uc.batchSize {
		hi := min(lo+uc.batchSize, len(missing))
		batch := make([]string, 0, hi-lo)
		for _, row := range missing[lo:hi] {
			batch = append(batch, texts[row])
		}

		out, err := uc.embedder.Embed(ctx, batch)
		if err != nil {
			return domain.DenseMatrix{}, 0, fmt.Errorf("embed catalog texts: %w", err)
		}
		if len(out) != len(batch) {
			return domain.DenseMatrix{}, 0, domain.WrapError(
				domain.ErrModelUnavailable,
				"embed catalog texts",
				fmt.Errorf("vectors/texts mismatch: %d/%d", len(out), len(batch)),
			)
		}
		for j, row := range missing[lo:hi] {
			vectors[row] = out[j]
			if uc.cache == nil {
				continue
			}
			if err := uc.cache.Put(ctx, model, texts[row], out[j]); err != nil {
				uc.logger.Warn("embedding_cache_put_failed", "row", row, "error", err)
			}
		}
	}

	dim := len(vectors[0])
	if dim == 0 {
		return domain.DenseMatrix{}, 0, domain.WrapError(domain.ErrModelUnavailable, "embed catalog texts", errors.New("encoder returned empty vectors"))
	}
	matrix := domain.DenseMatrix{Rows: len(vectors), Dim: dim, Data: make([]float32, 0, len(vectors)*dim)}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.DenseMatrix{}, 0, fmt.Errorf("embedding row %d has dim %d, want %d", i, len(v), dim)
		}
		matrix.Data = append(matrix.Data, v...)
	}
	return matrix, cached, nil
}
