package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

type recommenderFake struct {
	views  []domain.AssessmentView
	err    error
	inputs []string
}

func (f *recommenderFake) Recommend(_ context.Context, input string) ([]domain.AssessmentView, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(input) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recommend", errors.New("query must be non-empty"))
	}
	return f.views, nil
}

func newTestHandler(t *testing.T, cfg config.Config, rec *recommenderFake, opts ...RouterOption) http.Handler {
	t.Helper()
	rt, err := NewRouter(cfg, rec, opts...)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func postRecommend(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthReturnsOK(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	for _, path := range []string{"/health", "/healthz"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, res.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(res.Body.Bytes(), &body)
		if body["status"] != "ok" {
			t.Fatalf("%s unexpected body %s", path, res.Body.String())
		}
	}
}

func TestRecommendReturnsProjectedArray(t *testing.T) {
	rec := &recommenderFake{views: []domain.AssessmentView{{
		Name:          "Java 8 (New)",
		URL:           "https://www.shl.com/products/product-catalog/view/java-8-new/",
		RemoteTesting: domain.Yes,
		Adaptive:      domain.No,
		Duration:      "18 minutes",
		TestTypes:     []string{"Knowledge & Skills"},
		Type:          "Knowledge & Skills",
	}}}
	handler := newTestHandler(t, config.Config{}, rec)

	res := postRecommend(handler, `{"query":"java developer"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body []map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected one item, got %d", len(body))
	}
	for _, key := range []string{"name", "url", "description", "remote_testing", "adaptive", "duration", "test_types", "type"} {
		if _, ok := body[0][key]; !ok {
			t.Fatalf("missing field %q in %v", key, body[0])
		}
	}
	if rec.inputs[0] != "java developer" {
		t.Fatalf("unexpected recommender input %q", rec.inputs[0])
	}
}

func TestRecommendEmptyResultIsEmptyArray(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	res := postRecommend(handler, `{"query":"nothing matches"}`)
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", res.Body.String())
	}
}

func TestRecommendBlankQueryReturns400(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	res := postRecommend(handler, `{"query":"   "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "non-empty") {
		t.Fatalf("expected descriptive message, got %s", res.Body.String())
	}
}

func TestRecommendMissingQueryFailsValidation(t *testing.T) {
	rec := &recommenderFake{}
	handler := newTestHandler(t, config.Config{}, rec)
	res := postRecommend(handler, `{"text":"java"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(rec.inputs) != 0 {
		t.Fatalf("expected recommender not to be called")
	}
}

func TestRecommendWrongMethodIsRejected(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/recommend", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMetricsRouteIsOptional(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", res.Code)
	}

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	wrapped := 0
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped++
			next.ServeHTTP(w, r)
		})
	}
	handler = newTestHandler(t, config.Config{}, &recommenderFake{}, WithMetrics(metricsHandler, mw))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || wrapped != 1 {
		t.Fatalf("expected metrics served through middleware, code=%d wrapped=%d", res.Code, wrapped)
	}
}

func TestServesOpenAPIDocument(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &recommenderFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/recommend") {
		t.Fatalf("expected openapi document, got %d", res.Code)
	}
}
