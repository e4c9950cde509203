package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

// rerankCandidates scores every (query, record text) pair and orders the
// candidates by score desc. Equal scores keep the fusion order, which is
// itself tie-broken by ascending row.
func rerankCandidates(
	ctx context.Context,
	scorer ports.PairScorer,
	query string,
	candidates []domain.ScoredRow,
	records []domain.CatalogRecord,
	topN int,
) ([]domain.ScoredRow, error) {
	if len(candidates) == 0 {
		return []domain.ScoredRow{}, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = records[c.Row].IndexText()
	}

	scores, err := scorer.ScorePairs(ctx, query, documents)
	if err != nil {
		return nil, fmt.Errorf("score candidate pairs: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d scores for %d candidates", len(scores), len(candidates))
	}

	type positioned struct {
		row      domain.ScoredRow
		position int
	}
	head := make([]positioned, len(candidates))
	for i, c := range candidates {
		head[i] = positioned{
			row:      domain.ScoredRow{Row: c.Row, Score: scores[i]},
			position: i,
		}
	}

	sort.Slice(head, func(i, j int) bool {
		if head[i].row.Score != head[j].row.Score {
			return head[i].row.Score > head[j].row.Score
		}
		return head[i].position < head[j].position
	})

	if topN <= 0 || topN > len(head) {
		topN = len(head)
	}
	out := make([]domain.ScoredRow, topN)
	for i := range out {
		out[i] = head[i].row
	}
	return out, nil
}
