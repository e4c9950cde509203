// Package flat implements exhaustive cosine nearest-neighbor search over an
// in-memory embedding matrix.
package flat

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const zeroNormEpsilon = 1e-12

// Index keeps unit-normalized copies of the embedding rows. Scores returned by
// Search are cosine similarities, so ascending distance equals descending score.
type Index struct {
	rows int
	dim  int
	unit []float32
}

func NewIndex(embeddings domain.DenseMatrix, spec domain.NeighborIndexSpec) (*Index, error) {
	if err := embeddings.Validate(); err != nil {
		return nil, fmt.Errorf("flat index: %w", err)
	}
	if spec.Metric != domain.NeighborMetricCosine || spec.Algorithm != domain.NeighborAlgorithmBrute {
		return nil, fmt.Errorf("flat index: unsupported metric/algorithm %q/%q", spec.Metric, spec.Algorithm)
	}
	if spec.Rows != embeddings.Rows || spec.Dim != embeddings.Dim {
		return nil, fmt.Errorf("flat index: spec shape %dx%d does not match embeddings %dx%d",
			spec.Rows, spec.Dim, embeddings.Rows, embeddings.Dim)
	}

	unit := make([]float32, len(embeddings.Data))
	for i := 0; i < embeddings.Rows; i++ {
		row := embeddings.Row(i)
		norm := l2(row)
		if norm < zeroNormEpsilon {
			continue
		}
		off := i * embeddings.Dim
		for j, v := range row {
			unit[off+j] = float32(float64(v) / norm)
		}
	}
	return &Index{rows: embeddings.Rows, dim: embeddings.Dim, unit: unit}, nil
}

func (idx *Index) Len() int { return idx.rows }

func (idx *Index) Dim() int { return idx.dim }

// Search returns the min(k, rows) nearest rows by cosine distance, ties broken
// by ascending row.
func (idx *Index) Search(vector []float32, k int) ([]domain.ScoredRow, error) {
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("flat index: query dim %d, index dim %d", len(vector), idx.dim)
	}
	if k <= 0 || idx.rows == 0 {
		return []domain.ScoredRow{}, nil
	}
	qnorm := l2(vector)

	scored := make([]domain.ScoredRow, idx.rows)
	for i := 0; i < idx.rows; i++ {
		var dot float64
		if qnorm >= zeroNormEpsilon {
			row := idx.unit[i*idx.dim : (i+1)*idx.dim]
			for j, v := range vector {
				dot += float64(v) * float64(row[j])
			}
			dot /= qnorm
		}
		scored[i] = domain.ScoredRow{Row: i, Score: dot}
	}

	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Row < scored[b].Row
	})
	if k < idx.rows {
		scored = scored[:k]
	}
	return scored, nil
}

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
