package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/resilience"
)

const serviceName = "ollama"

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type EmbedderOption func(*Embedder)

// WithExecutor routes batch embedding through retries and a circuit breaker.
// Query embedding always goes straight to the server.
func WithExecutor(executor *resilience.Executor) EmbedderOption {
	return func(e *Embedder) { e.executor = executor }
}

// Embedder calls /api/embed and returns one vector per input text.
type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client, opts ...EmbedderOption) *Embedder {
	e := &Embedder{client: client}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) ModelID() string {
	return serviceName + ":" + e.client.embedModel
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.executor == nil {
		return e.embed(ctx, texts)
	}

	classifier := resilience.HTTPClassifier(resilience.RetryableStatuses)
	vectors, err := resilience.Do(ctx, e.executor, "ollama_embed", func(ctx context.Context) ([][]float32, error) {
		return e.embed(ctx, texts)
	}, classifier)
	if err != nil {
		return nil, resilience.WrapTemporary("ollama embed", err, classifier)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Probe embeds a fixed string so a missing model fails at startup rather than
// on the first request.
func (e *Embedder) Probe(ctx context.Context) (int, error) {
	vector, err := e.EmbedQuery(ctx, "health probe")
	if err != nil {
		return 0, domain.WrapError(domain.ErrModelUnavailable, "probe encoder "+e.client.embedModel, err)
	}
	if len(vector) == 0 {
		return 0, domain.WrapError(domain.ErrModelUnavailable, "probe encoder "+e.client.embedModel, errors.New("empty vector"))
	}
	return len(vector), nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}
