package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/catalog/jsonfile"
)

var vocabularyAxes = []string{"java", "python", "leadership"}

// fakeModelServer serves /api/embed with bag-of-keyword vectors and /rerank
// with keyword-overlap scores.
func fakeModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			v := make([]float32, len(vocabularyAxes)+1)
			for j, axis := range vocabularyAxes {
				v[j] = float32(strings.Count(strings.ToLower(text), axis))
			}
			v[len(vocabularyAxes)] = 0.1
			out[i] = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	})
	mux.HandleFunc("POST /rerank", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type result struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}
		results := make([]result, len(req.Documents))
		for i, doc := range req.Documents {
			score := 0.0
			for _, word := range strings.Fields(strings.ToLower(req.Query)) {
				if strings.Contains(strings.ToLower(doc), word) {
					score++
				}
			}
			results[i] = result{Index: i, RelevanceScore: score}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, modelURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		ArtifactsDir:        filepath.Join(dir, "artifacts"),
		CatalogSource:       config.CatalogSourceFile,
		CatalogPath:         filepath.Join(dir, "assessments.json"),
		OllamaURL:           modelURL,
		OllamaEmbedModel:    "keywords",
		EmbedBatchSize:      2,
		RerankURL:           modelURL,
		RerankModel:         "overlap",
		SparseK:             50,
		DenseK:              50,
		RRFK:                10,
		CandidateLimit:      100,
		FinalK:              10,
		FetchTimeoutSeconds: 1,
	}
}

func seedCatalog(t *testing.T, cfg config.Config) {
	t.Helper()
	records := []domain.CatalogRecord{
		{Name: "Java", URL: "/java", Description: "coding test"},
		{Name: "Python", URL: "/python", Description: "coding test"},
		{Name: "Leadership", URL: "/leadership", Description: "personality survey"},
	}
	if err := jsonfile.New(cfg.CatalogPath).SaveRecords(context.Background(), records); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func TestBuildThenServeRecommendsJavaFirst(t *testing.T) {
	srv := fakeModelServer(t)
	cfg := testConfig(t, srv.URL)
	seedCatalog(t, cfg)
	ctx := context.Background()

	builder, err := NewBuilder(ctx, cfg, "indexer", nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	manifest, err := builder.Build(ctx)
	builder.Close()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if manifest.RecordCount != 3 || manifest.EmbeddingDim != 4 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}

	app, err := NewServing(ctx, cfg, "api", nil)
	if err != nil {
		t.Fatalf("NewServing() error = %v", err)
	}
	views, err := app.Recommender.Recommend(ctx, "java programming assessment")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(views) == 0 || views[0].Name != "Java" {
		t.Fatalf("expected Java first, got %+v", views)
	}
	if app.Manifest.BuildID != manifest.BuildID {
		t.Fatalf("expected served manifest to match build")
	}
}

func TestServingFailsWithoutArtifacts(t *testing.T) {
	srv := fakeModelServer(t)
	cfg := testConfig(t, srv.URL)
	_, err := NewServing(context.Background(), cfg, "api", nil)
	if !domain.IsKind(err, domain.ErrArtifactLoad) {
		t.Fatalf("expected artifact load error, got %v", err)
	}
}

func TestServingRejectsDifferentEncoder(t *testing.T) {
	srv := fakeModelServer(t)
	cfg := testConfig(t, srv.URL)
	seedCatalog(t, cfg)
	ctx := context.Background()

	builder, err := NewBuilder(ctx, cfg, "indexer", nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(ctx); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	builder.Close()

	cfg.OllamaEmbedModel = "another-model"
	if _, err := NewServing(ctx, cfg, "api", nil); !domain.IsKind(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}

func TestServingFailsWhenRerankerDown(t *testing.T) {
	srv := fakeModelServer(t)
	cfg := testConfig(t, srv.URL)
	seedCatalog(t, cfg)
	ctx := context.Background()

	builder, err := NewBuilder(ctx, cfg, "indexer", nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(ctx); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	builder.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	defer down.Close()
	cfg.RerankURL = down.URL
	if _, err := NewServing(ctx, cfg, "api", nil); !domain.IsKind(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}

func TestOpenCatalogRejectsUnknownSource(t *testing.T) {
	var cleanup closers
	if _, err := openCatalog(context.Background(), config.Config{CatalogSource: "s3"}, &cleanup); err == nil {
		t.Fatalf("expected error")
	}
}
