package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

type RetrievalSettings struct {
	SparseK        int
	DenseK         int
	RRFK           int
	CandidateLimit int
	FinalK         int
}

func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		SparseK:        50,
		DenseK:         50,
		RRFK:           defaultRRFK,
		CandidateLimit: 100,
		FinalK:         10,
	}
}

func (s RetrievalSettings) normalize() RetrievalSettings {
	def := DefaultRetrievalSettings()
	if s.SparseK <= 0 {
		s.SparseK = def.SparseK
	}
	if s.DenseK <= 0 {
		s.DenseK = def.DenseK
	}
	if s.RRFK <= 0 {
		s.RRFK = def.RRFK
	}
	if s.CandidateLimit <= 0 {
		s.CandidateLimit = def.CandidateLimit
	}
	if s.FinalK <= 0 {
		s.FinalK = def.FinalK
	}
	return s
}

// IndexSet is the read-only serving state: the record list and the two
// indices built over it, row-aligned. It is built once at startup and shared
// by all requests without locking.
type IndexSet struct {
	records  []domain.CatalogRecord
	lexical  ports.LexicalIndex
	semantic ports.SemanticIndex
}

func NewIndexSet(records []domain.CatalogRecord, lexical ports.LexicalIndex, semantic ports.SemanticIndex) (*IndexSet, error) {
	if lexical == nil || semantic == nil {
		return nil, domain.WrapError(domain.ErrArtifactLoad, "index set", errors.New("lexical and semantic indices are required"))
	}
	if lexical.Len() != len(records) || semantic.Len() != len(records) {
		return nil, domain.WrapError(domain.ErrIndexMisaligned, "index set", fmt.Errorf(
			"records=%d lexical=%d semantic=%d", len(records), lexical.Len(), semantic.Len(),
		))
	}
	return &IndexSet{records: records, lexical: lexical, semantic: semantic}, nil
}

func (s *IndexSet) Len() int { return len(s.records) }

func (s *IndexSet) Record(row int) domain.CatalogRecord { return s.records[row] }

// RecommendStats describes one completed recommendation for observers.
type RecommendStats struct {
	URLQuery      bool
	FetchDegraded bool
	SparseHits    int
	DenseHits     int
	Candidates    int
	Results       int
	Duration      time.Duration
}

type RecommendObserver interface {
	ObserveRecommendation(stats RecommendStats)
}

type RecommendOption func(*RecommendUseCase)

func WithRecommendObserver(observer RecommendObserver) RecommendOption {
	return func(uc *RecommendUseCase) { uc.observer = observer }
}

func WithRecommendLogger(logger *slog.Logger) RecommendOption {
	return func(uc *RecommendUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

type RecommendUseCase struct {
	indices   *IndexSet
	embedder  ports.Embedder
	scorer    ports.PairScorer
	extractor ports.PageTextExtractor
	settings  RetrievalSettings
	observer  RecommendObserver
	logger    *slog.Logger
}

func NewRecommendUseCase(
	indices *IndexSet,
	embedder ports.Embedder,
	scorer ports.PairScorer,
	extractor ports.PageTextExtractor,
	settings RetrievalSettings,
	opts ...RecommendOption,
) *RecommendUseCase {
	uc := &RecommendUseCase{
		indices:   indices,
		embedder:  embedder,
		scorer:    scorer,
		extractor: extractor,
		settings:  settings.normalize(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *RecommendUseCase) Settings() RetrievalSettings {
	return uc.settings
}

func (uc *RecommendUseCase) Recommend(ctx context.Context, input string) ([]domain.AssessmentView, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend", errors.New("query must be non-empty"))
	}

	start := time.Now()
	stats := RecommendStats{}
	queryText := uc.resolveQueryText(ctx, trimmed, &stats)

	ranked, err := uc.rank(ctx, queryText, &stats)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AssessmentView, len(ranked))
	for i, r := range ranked {
		out[i] = uc.indices.Record(r.Row).View()
	}

	stats.Results = len(out)
	stats.Duration = time.Since(start)
	if uc.observer != nil {
		uc.observer.ObserveRecommendation(stats)
	}
	return out, nil
}

func isURLQuery(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveQueryText turns a URL into page text. Any extraction failure falls
// back to the URL string itself.
func (uc *RecommendUseCase) resolveQueryText(ctx context.Context, input string, stats *RecommendStats) string {
	if !isURLQuery(input) {
		return input
	}
	stats.URLQuery = true

	if uc.extractor == nil {
		stats.FetchDegraded = true
		return input
	}
	res := uc.extractor.ExtractText(ctx, input)
	if res.OK() {
		return res.Text
	}

	stats.FetchDegraded = true
	uc.logger.Warn("query_url_fetch_degraded",
		"url", input,
		"failure", string(res.Failure),
		"status_code", res.StatusCode,
		"error", res.Err,
	)
	return input
}

func (uc *RecommendUseCase) rank(ctx context.Context, queryText string, stats *RecommendStats) ([]domain.ScoredRow, error) {
	var sparse, dense []domain.ScoredRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sparse = uc.indices.lexical.Search(queryText, uc.settings.SparseK)
		return nil
	})
	g.Go(func() error {
		vector, err := uc.embedder.EmbedQuery(gctx, queryText)
		if err != nil {
			return domain.WrapError(domain.ErrModelUnavailable, "embed query", err)
		}
		rows, err := uc.indices.semantic.Search(vector, uc.settings.DenseK)
		if err != nil {
			return fmt.Errorf("search semantic index: %w", err)
		}
		dense = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.SparseHits = len(sparse)
	stats.DenseHits = len(dense)

	fused := fuseRowsRRF(uc.settings.RRFK, domain.Rows(sparse), domain.Rows(dense))
	candidates := trimCandidates(fused, uc.settings.CandidateLimit)
	stats.Candidates = len(candidates)

	ranked, err := rerankCandidates(ctx, uc.scorer, queryText, candidates, uc.indices.records, uc.settings.FinalK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelUnavailable, "rerank candidates", err)
	}
	return ranked, nil
}
