// Package embedding holds the application-level decorators of the embedding chain.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
)

var tracer = otel.Tracer("paperrag/embedding")

var errNoHealthCheck = errors.New("embedder has no health check")

// InstrumentedEmbedder wraps an Embedder with tracing and logging.
// Transport metrics (requests, duration, tokens) are recorded by the providers.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, logger *zap.Logger) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{inner: inner, logger: logger}
}

// Version reports the inner embedder's version.
func (p *InstrumentedEmbedder) Version() domain.ModelVersion { return p.inner.Version() }

// Embed delegates to the inner embedder inside a span.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	version := p.inner.Version()
	ctx, span := tracer.Start(ctx, "embedding.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("paperrag.embedding.model", version.Model),
		attribute.Int("paperrag.embedding.dimensions", version.Dimensions),
	)

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		p.logger.Error("Embedding request failed",
			zap.String("model", version.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	span.SetAttributes(attribute.Int("paperrag.embedding.total_tokens", result.TotalTokens))
	p.logger.Debug("Embedding request completed",
		zap.String("model", version.String()),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck delegates to the provider at the bottom of the chain.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return errNoHealthCheck
	}
	return hc.HealthCheck(ctx)
}
