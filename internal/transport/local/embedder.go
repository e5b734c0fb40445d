// Package local provides the offline embedding provider: a deterministic
// feature-hashing vectorizer that needs no network and no model files.
package local

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/text"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

// Model is the model identifier reported in the embedder version.
const Model = "feature-hash"

// DefaultDimensions is used when no dimensionality is configured.
const DefaultDimensions = 512

const provider = "local"

// Embedder hashes stopword-filtered tokens into a fixed number of buckets,
// weights each bucket by 1+ln(tf) and L2-normalizes the result.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a feature-hashing embedder. dimensions <= 0 selects DefaultDimensions.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Version implements domain.Embedder.
func (e *Embedder) Version() domain.ModelVersion {
	return domain.ModelVersion{Model: Model, Dimensions: e.dimensions}
}

// Embed implements domain.Embedder. Text without any token yields a zero vector.
func (e *Embedder) Embed(ctx context.Context, s string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("local embed: %w", err)
	}
	start := time.Now()

	tokens := text.Tokenize(s)
	counts := make([]float64, e.dimensions)
	for _, tok := range tokens {
		counts[e.bucket(tok)]++
	}

	vec := make([]float32, e.dimensions)
	for i, c := range counts {
		if c > 0 {
			vec[i] = float32(1 + math.Log(c))
		}
	}
	vec, _ = domain.L2Normalize(vec)

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, Model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, Model).Observe(time.Since(start).Seconds())

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) bucket(tok string) int {
	return int(xxhash.Sum64String(tok) % uint64(e.dimensions))
}
