package usecase

import (
	"sort"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const defaultRRFK = 10

// fuseRowsRRF merges ranked row lists with reciprocal rank fusion. Ranks are
// 1-based within each list; a row absent from a list gets nothing from it.
// Output is ordered by fused score desc, then row asc.
func fuseRowsRRF(rrfK int, lists ...[]int) []domain.ScoredRow {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	size := 0
	for _, list := range lists {
		size += len(list)
	}
	acc := make(map[int]float64, size)
	for _, list := range lists {
		seen := make(map[int]struct{}, len(list))
		for i, row := range list {
			if _, dup := seen[row]; dup {
				continue
			}
			seen[row] = struct{}{}
			rank := i + 1
			acc[row] += 1.0 / float64(rrfK+rank)
		}
	}

	out := make([]domain.ScoredRow, 0, len(acc))
	for row, score := range acc {
		out = append(out, domain.ScoredRow{Row: row, Score: score})
	}
	sortByScoreThenRow(out)
	return out
}

func sortByScoreThenRow(rows []domain.ScoredRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Row < rows[j].Row
	})
}

func trimCandidates(rows []domain.ScoredRow, limit int) []domain.ScoredRow {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}
