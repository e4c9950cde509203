package ports

import (
	"context"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

// LexicalIndex answers lexical similarity queries over the catalog rows.
type LexicalIndex interface {
	Search(query string, k int) []domain.ScoredRow
	Len() int
}

// LexicalFitter fits a lexical model and its weighted matrix over row texts.
type LexicalFitter interface {
	Fit(texts []string) (domain.LexicalModel, domain.SparseMatrix, error)
}

// SemanticIndex answers nearest-neighbor queries over the catalog embeddings.
type SemanticIndex interface {
	Search(vector []float32, k int) ([]domain.ScoredRow, error)
	Len() int
	Dim() int
}

// Embedder builds vectors for catalog texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// PairScorer scores (query, document) pairs jointly. Scores align with documents.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, documents []string) ([]float64, error)
}

// PageTextExtractor fetches a page and returns its visible text.
type PageTextExtractor interface {
	ExtractText(ctx context.Context, url string) domain.FetchResult
}

// CatalogSource reads the ingested record list in index order.
type CatalogSource interface {
	LoadRecords(ctx context.Context) ([]domain.CatalogRecord, error)
}

// CatalogSink stores a freshly ingested record list, replacing the previous one.
type CatalogSink interface {
	SaveRecords(ctx context.Context, records []domain.CatalogRecord) error
}

// CatalogScraper produces the raw record list from the remote catalog.
type CatalogScraper interface {
	Scrape(ctx context.Context) ([]domain.CatalogRecord, error)
}

// ArtifactStore persists and loads complete artifact bundles.
type ArtifactStore interface {
	Save(ctx context.Context, bundle *domain.ArtifactBundle) error
	Load(ctx context.Context) (*domain.ArtifactBundle, error)
}

// EmbeddingCache memoizes catalog embeddings across rebuilds.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Put(ctx context.Context, model, text string, vector []float32) error
}

// MessageQueue publishes/consumes catalog ingestion events.
type MessageQueue interface {
	PublishCatalogIngested(ctx context.Context, recordCount int) error
	SubscribeCatalogIngested(ctx context.Context, handler func(context.Context, int) error) error
}
