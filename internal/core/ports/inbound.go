package ports

import (
	"context"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

// Recommender is the inbound contract for query-to-assessment recommendation.
type Recommender interface {
	Recommend(ctx context.Context, input string) ([]domain.AssessmentView, error)
}

// IndexBuilder is the inbound contract for the offline artifact build.
type IndexBuilder interface {
	Build(ctx context.Context) (*domain.BuildManifest, error)
}

// CatalogIngestor is the inbound contract for catalog ingestion.
type CatalogIngestor interface {
	Ingest(ctx context.Context) ([]domain.CatalogRecord, error)
}

// Evaluator is the inbound contract for offline ranking-quality evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, cases []domain.EvalCase, k int) (*domain.EvalReport, error)
}
