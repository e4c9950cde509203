package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

const (
	DefaultEvalK              = 3
	DefaultEvalRRFK           = 60
	DefaultEvalCandidateLimit = 20
)

// EvalRetrievalSettings are the pipeline settings the offline harness runs with.
func EvalRetrievalSettings(k int) RetrievalSettings {
	if k <= 0 {
		k = DefaultEvalK
	}
	s := DefaultRetrievalSettings()
	s.RRFK = DefaultEvalRRFK
	s.CandidateLimit = DefaultEvalCandidateLimit
	s.FinalK = k
	return s
}

const catalogHost = "https://www.shl.com"

// NormalizeCatalogURL maps the different catalog URL spellings onto one form
// so labelled and retrieved URLs compare equal.
func NormalizeCatalogURL(raw string) string {
	u := strings.TrimSpace(strings.ToLower(raw))
	u = strings.ReplaceAll(u, catalogHost, "")
	u = strings.ReplaceAll(u, "/products/product-catalog/view/", "/solutions/products/productcatalog/view/")
	return strings.TrimRight(u, "/")
}

// RecallAtK is |top-k ∩ relevant| / |relevant|; 0 when nothing is relevant.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	rel := toSet(relevant)
	hits := 0
	for url := range toSet(headK(retrieved, k)) {
		if _, ok := rel[url]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// AveragePrecisionAtK sums precision at every hit in the top k and divides by
// min(k, |relevant|).
func AveragePrecisionAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	rel := toSet(relevant)
	hits := 0
	var score float64
	for i, url := range headK(retrieved, k) {
		if _, ok := rel[url]; ok {
			hits++
			score += float64(hits) / float64(i+1)
		}
	}
	return score / float64(min(k, len(relevant)))
}

func headK(items []string, k int) []string {
	if k < 0 {
		k = 0
	}
	if k < len(items) {
		return items[:k]
	}
	return items
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

type EvaluateUseCase struct {
	recommender ports.Recommender
	logger      *slog.Logger
}

func NewEvaluateUseCase(recommender ports.Recommender, logger *slog.Logger) *EvaluateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateUseCase{recommender: recommender, logger: logger}
}

func (uc *EvaluateUseCase) Evaluate(ctx context.Context, cases []domain.EvalCase, k int) (*domain.EvalReport, error) {
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", errors.New("no evaluation cases"))
	}
	if k <= 0 {
		k = DefaultEvalK
	}

	report := &domain.EvalReport{K: k, Cases: make([]domain.EvalCaseResult, 0, len(cases))}
	var recallSum, apSum float64
	for i, c := range cases {
		views, err := uc.recommender.Recommend(ctx, c.Query)
		if err != nil {
			return nil, fmt.Errorf("evaluate case %d: %w", i, err)
		}

		relevant := normalizeURLs(c.RelevantURLs)
		retrieved := make([]string, len(views))
		for j, v := range views {
			retrieved[j] = NormalizeCatalogURL(v.URL)
		}

		res := domain.EvalCaseResult{
			Query:            c.Query,
			RetrievedURLs:    headK(retrieved, k),
			Recall:           RecallAtK(relevant, retrieved, k),
			AveragePrecision: AveragePrecisionAtK(relevant, retrieved, k),
		}
		recallSum += res.Recall
		apSum += res.AveragePrecision
		report.Cases = append(report.Cases, res)

		uc.logger.Debug("eval_case_scored", "case", i, "recall", res.Recall, "average_precision", res.AveragePrecision)
	}

	report.Queries = len(report.Cases)
	report.MeanRecall = recallSum / float64(report.Queries)
	report.MAP = apSum / float64(report.Queries)
	return report, nil
}

// normalizeURLs normalizes and drops blanks and duplicates, keeping order.
func normalizeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		n := NormalizeCatalogURL(u)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
