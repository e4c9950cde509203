package tfidf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const DefaultMaxFeatures = 75000

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Vectorizer fits TF-IDF weights over unigrams and bigrams with English stop
// words removed. Row vectors are l2-normalized and idf is smoothed:
// idf = ln((1+n)/(1+df)) + 1.
type Vectorizer struct {
	MinNGram    int
	MaxNGram    int
	MaxFeatures int
}

func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Vectorizer{MinNGram: 1, MaxNGram: 2, MaxFeatures: maxFeatures}
}

func (v *Vectorizer) Fit(texts []string) (domain.LexicalModel, domain.SparseMatrix, error) {
	if len(texts) == 0 {
		return domain.LexicalModel{}, domain.SparseMatrix{}, errors.New("tfidf: no texts to fit")
	}

	docs := make([]map[string]int, len(texts))
	totals := make(map[string]int, 1024)
	docFreq := make(map[string]int, 1024)
	for i, text := range texts {
		counts := countTerms(analyze(text, v.MinNGram, v.MaxNGram))
		docs[i] = counts
		for term, c := range counts {
			totals[term] += c
			docFreq[term]++
		}
	}
	if len(totals) == 0 {
		return domain.LexicalModel{}, domain.SparseMatrix{}, errors.New("tfidf: empty vocabulary; texts contain only stop words")
	}

	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if totals[terms[i]] != totals[terms[j]] {
				return totals[terms[i]] > totals[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for col, term := range terms {
		vocab[term] = col
		idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	model := domain.LexicalModel{
		Vocabulary:  vocab,
		IDF:         idf,
		MinNGram:    v.MinNGram,
		MaxNGram:    v.MaxNGram,
		MaxFeatures: v.MaxFeatures,
		StopWords:   englishStopWordsName,
	}

	matrix := domain.SparseMatrix{
		Rows:   len(texts),
		Cols:   len(terms),
		IndPtr: make([]int, 1, len(texts)+1),
	}
	for _, counts := range docs {
		cols, weights := weighRow(counts, model)
		matrix.Indices = append(matrix.Indices, cols...)
		matrix.Data = append(matrix.Data, weights...)
		matrix.IndPtr = append(matrix.IndPtr, len(matrix.Data))
	}
	if err := matrix.Validate(); err != nil {
		return domain.LexicalModel{}, domain.SparseMatrix{}, fmt.Errorf("tfidf: %w", err)
	}
	return model, matrix, nil
}

// weighRow projects term counts into the fitted vocabulary. Out-of-vocabulary
// terms are dropped. Columns come back ascending.
func weighRow(counts map[string]int, model domain.LexicalModel) ([]int, []float64) {
	cols := make([]int, 0, len(counts))
	for term := range counts {
		if col, ok := model.Vocabulary[term]; ok {
			cols = append(cols, col)
		}
	}
	sort.Ints(cols)

	terms := make(map[int]string, len(cols))
	for term := range counts {
		if col, ok := model.Vocabulary[term]; ok {
			terms[col] = term
		}
	}

	weights := make([]float64, len(cols))
	var norm float64
	for i, col := range cols {
		w := float64(counts[terms[col]]) * model.IDF[col]
		weights[i] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range weights {
			weights[i] /= norm
		}
	}
	return cols, weights
}

func countTerms(terms []string) map[string]int {
	out := make(map[string]int, len(terms))
	for _, t := range terms {
		out[t]++
	}
	return out
}

// analyze lowercases, tokenizes, drops stop words and appends n-grams built
// from the remaining tokens.
func analyze(text string, minN, maxN int) []string {
	tokens := tokenize(text)
	if minN <= 0 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}

	out := make([]string, 0, len(tokens)*(maxN-minN+1))
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
