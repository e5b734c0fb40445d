package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

// embedRequest is the Ollama /api/embed request format.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the Ollama /api/embed response format.
type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embedder is an embedding provider backed by Ollama.
type Embedder struct {
	client     *client
	model      string
	dimensions int
}

// NewEmbedder creates an Ollama embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{client: newClient(cfg), model: cfg.Model, dimensions: cfg.Dimensions}
}

// Version implements domain.Embedder.
func (e *Embedder) Version() domain.ModelVersion {
	return domain.ModelVersion{Model: e.model, Dimensions: e.dimensions}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	var resp embedResponse
	if err := e.client.postJSON(ctx, "/api/embed", embedRequest{Model: e.model, Input: text}, &resp); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("ollama", e.model, "api_error").Inc()
		return domain.EmbeddingResult{}, err
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("ollama", e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrProviderResponse)
	}

	vec := resp.Embeddings[0]
	if e.dimensions > 0 && len(vec) != e.dimensions {
		metrics.EmbeddingErrorsTotal.WithLabelValues("ollama", e.model, "dimension_mismatch").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf(
			"embedding has %d dimensions, want %d: %w", len(vec), e.dimensions, domain.ErrIndexVersionMismatch,
		)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("ollama", e.model).Observe(time.Since(start).Seconds())

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.PromptEvalCount,
		TotalTokens:  resp.PromptEvalCount,
	}, nil
}

// HealthCheck verifies the server is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	return e.client.ping(ctx)
}
