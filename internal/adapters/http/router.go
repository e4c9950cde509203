package httpadapter

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

const maxRequestBodyBytes = 1 << 20

type Router struct {
	cfg            config.Config
	recommender    ports.Recommender
	metricsHandler http.Handler
	metricsMW      func(http.Handler) http.Handler
	validator      *requestValidator
}

type RouterOption func(*Router)

// WithMetrics exposes handler at /metrics and wraps every request with mw.
func WithMetrics(handler http.Handler, mw func(http.Handler) http.Handler) RouterOption {
	return func(rt *Router) {
		rt.metricsHandler = handler
		rt.metricsMW = mw
	}
}

func NewRouter(cfg config.Config, recommender ports.Recommender, opts ...RouterOption) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:         cfg,
		recommender: recommender,
		validator:   validator,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	recommend := http.Handler(http.HandlerFunc(rt.recommend))
	recommend = rt.validator.middleware(recommend)
	recommend = backpressureMiddleware(recommend, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	recommend = rateLimitMiddleware(recommend, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", rt.health)
	mux.HandleFunc("GET /healthz", rt.health)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.Handle("POST /recommend", recommend)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.metricsMW != nil {
		handler = rt.metricsMW(handler)
	}
	handler = corsMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(OpenAPIDocument())
}

type recommendRequest struct {
	Query string `json:"query"`
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return
	}
	var req recommendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	views, err := rt.recommender.Recommend(r.Context(), req.Query)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("recommend_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": errorMessage(err)})
		return
	}
	if views == nil {
		views = []domain.AssessmentView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// errorMessage keeps the cause chain out of 5xx responses.
func errorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, domain.ErrTemporary), errors.Is(err, domain.ErrModelUnavailable):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
