package tfidf

import (
	"fmt"
	"sort"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

// Index holds a fitted model and its weighted matrix and answers cosine
// similarity queries. It is read-only after construction.
type Index struct {
	model  domain.LexicalModel
	matrix domain.SparseMatrix
}

func NewIndex(model domain.LexicalModel, matrix domain.SparseMatrix) (*Index, error) {
	if err := matrix.Validate(); err != nil {
		return nil, fmt.Errorf("tfidf matrix: %w", err)
	}
	if matrix.Cols != model.VocabularySize() || len(model.Vocabulary) != model.VocabularySize() {
		return nil, fmt.Errorf("tfidf: matrix has %d columns, model has %d terms", matrix.Cols, model.VocabularySize())
	}
	return &Index{model: model, matrix: matrix}, nil
}

func (idx *Index) Len() int { return idx.matrix.Rows }

func (idx *Index) VocabularySize() int { return idx.model.VocabularySize() }

// Transform projects query text into the fitted space as column -> weight.
func (idx *Index) Transform(query string) map[int]float64 {
	counts := countTerms(analyze(query, idx.model.MinNGram, idx.model.MaxNGram))
	cols, weights := weighRow(counts, idx.model)
	out := make(map[int]float64, len(cols))
	for i, col := range cols {
		out[col] = weights[i]
	}
	return out
}

// Search returns the k most similar rows, score desc then row asc. Rows with
// zero similarity still fill the list so the result length is min(k, rows).
func (idx *Index) Search(query string, k int) []domain.ScoredRow {
	n := idx.matrix.Rows
	if k <= 0 || n == 0 {
		return []domain.ScoredRow{}
	}
	q := idx.Transform(query)

	scored := make([]domain.ScoredRow, n)
	for row := 0; row < n; row++ {
		var dot float64
		if len(q) > 0 {
			for p := idx.matrix.IndPtr[row]; p < idx.matrix.IndPtr[row+1]; p++ {
				if w, ok := q[idx.matrix.Indices[p]]; ok {
					dot += w * idx.matrix.Data[p]
				}
			}
		}
		scored[row] = domain.ScoredRow{Row: row, Score: dot}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Row < scored[j].Row
	})
	if k < n {
		scored = scored[:k]
	}
	return scored
}
