package rerankapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

func TestScorePairsPlacesScoresByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var payload rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Query != "java" || len(payload.Documents) != 2 || payload.TopN != 2 {
			t.Errorf("unexpected payload %+v", payload)
		}
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":-2.5},{"index":0,"relevance_score":7.1}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "cross-encoder/ms-marco-MiniLM-L-12-v2", 0)
	scores, err := client.ScorePairs(context.Background(), "java", []string{"Java coding test", "Leadership survey"})
	if err != nil {
		t.Fatalf("ScorePairs() error = %v", err)
	}
	if scores[0] != 7.1 || scores[1] != -2.5 {
		t.Fatalf("unexpected scores %v", scores)
	}
}

func TestScorePairsRejectsIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":1}]}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "m", 0).ScorePairs(context.Background(), "q", []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected missing score error")
	}
}

func TestScorePairsEmptyDocumentsSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	scores, err := New(server.URL, "m", 0).ScorePairs(context.Background(), "q", nil)
	if err != nil || len(scores) != 0 || called {
		t.Fatalf("expected no call and empty scores, got %v %v called=%v", scores, err, called)
	}
}

func TestProbeReportsModelUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New(server.URL, "m", 0).Probe(context.Background())
	if !domain.IsKind(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}
