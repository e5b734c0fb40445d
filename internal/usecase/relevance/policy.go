package relevance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

var tracer = otel.Tracer("paperrag/relevance")

// Fallback reasons reported in metrics.
const (
	reasonUnavailable = "unavailable"
	reasonTimeout     = "timeout"
	reasonSkipped     = "circuit_open"
)

// Policy applies the local-fallback rule to a primary scorer: transient
// provider failures are served by the local scorer, response errors propagate.
type Policy struct {
	primary Scorer
	local   *Local
}

// NewPolicy wraps primary. A nil primary means the local scorer alone.
func NewPolicy(primary Scorer) *Policy {
	local := NewLocal()
	if primary == nil {
		primary = local
	}
	return &Policy{primary: primary, local: local}
}

// Primary returns the configured scorer.
func (p *Policy) Primary() Scorer { return p.primary }

// Begin starts the fallback state for one query. Sessions are safe for
// concurrent use by the workers of that query.
func (p *Policy) Begin() *Session {
	return &Session{policy: p}
}

// Session carries per-query fallback state: after the first transient
// failure the remaining calls skip the remote provider.
type Session struct {
	policy   *Policy
	tripped  atomic.Bool
	degraded atomic.Bool
}

// Score scores doc with the primary scorer, falling back to the local one.
// When ctx is done the context error is returned instead of a fallback score.
func (s *Session) Score(ctx context.Context, query string, doc *document.Document) (Score, error) {
	ctx, span := tracer.Start(ctx, "relevance.score")
	defer span.End()
	span.SetAttributes(
		attribute.String("paperrag.document.id", doc.ID()),
		attribute.String("paperrag.scorer", s.policy.primary.Name()),
	)

	if s.tripped.Load() {
		metrics.ScorerFallbackTotal.WithLabelValues(reasonSkipped).Inc()
		span.SetAttributes(attribute.Bool("paperrag.fallback", true))
		return s.policy.local.Score(ctx, query, doc)
	}

	score, err := s.policy.primary.Score(ctx, query, doc)
	if err == nil {
		return score, nil
	}
	if !domain.IsTransient(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score failed")
		return Score{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Score{}, fmt.Errorf("score %s: %w", doc.ID(), ctxErr)
	}

	s.trip(ctx, "score", err)
	span.SetAttributes(attribute.Bool("paperrag.fallback", true))
	return s.policy.local.Score(ctx, query, doc)
}

// Generate produces an answer with the primary scorer, falling back to the local one.
func (s *Session) Generate(ctx context.Context, query string, passages []Passage) (string, error) {
	if s.tripped.Load() {
		metrics.ScorerFallbackTotal.WithLabelValues(reasonSkipped).Inc()
		return s.policy.local.Generate(ctx, query, passages)
	}

	answer, err := s.policy.primary.Generate(ctx, query, passages)
	if err == nil {
		return answer, nil
	}
	if !domain.IsTransient(err) {
		return "", err
	}
	s.trip(ctx, "generate", err)
	return s.policy.local.Generate(ctx, query, passages)
}

// Degraded reports whether any call of this session was served by the fallback.
func (s *Session) Degraded() bool { return s.degraded.Load() }

// ProviderUsed is the provider to report for the session's results.
func (s *Session) ProviderUsed() string {
	if s.degraded.Load() {
		return result.ProviderLocalFallback
	}
	return s.policy.primary.Name()
}

func (s *Session) trip(ctx context.Context, op string, err error) {
	reason := reasonUnavailable
	if errors.Is(err, domain.ErrProviderTimeout) {
		reason = reasonTimeout
	}
	metrics.ScorerFallbackTotal.WithLabelValues(reason).Inc()
	s.degraded.Store(true)

	if s.tripped.CompareAndSwap(false, true) {
		logger.FromContext(ctx).Warn("Relevance provider failed, falling back to local scorer",
			zap.String("provider", s.policy.primary.Name()),
			zap.String("operation", op),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}
