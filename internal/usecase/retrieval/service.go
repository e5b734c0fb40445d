// Package retrieval turns a query into ranked, scored results: vector search
// for candidates, relevance scoring on a bounded pool, blending and ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/query"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/metrics"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
)

var tracer = otel.Tracer("paperrag/retrieval")

// Defaults applied by New for zero config values.
const (
	DefaultOverFetch        = 3
	DefaultMaxCandidates    = 100
	DefaultWorkers          = 8
	DefaultScorerWeight     = 0.6
	DefaultSimilarityWeight = 0.4
)

// Config tunes candidate fetching, scoring concurrency and blending.
type Config struct {
	OverFetch        int
	MaxCandidates    int
	Workers          int
	ScorerWeight     float64
	SimilarityWeight float64
	// Timeout bounds the scoring stage; zero disables it.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.OverFetch <= 0 {
		c.OverFetch = DefaultOverFetch
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.ScorerWeight == 0 && c.SimilarityWeight == 0 {
		c.ScorerWeight = DefaultScorerWeight
		c.SimilarityWeight = DefaultSimilarityWeight
	}
	return c
}

// Service is the retrieval orchestrator.
type Service struct {
	searcher Searcher
	embedder domain.Embedder
	policy   *relevance.Policy
	cfg      Config
}

// New creates a retrieval orchestrator. embedder must produce vectors in the
// index's embedding space.
func New(searcher Searcher, embedder domain.Embedder, policy *relevance.Policy, cfg Config) *Service {
	return &Service{searcher: searcher, embedder: embedder, policy: policy, cfg: cfg.withDefaults()}
}

// Retrieve runs q against the generation behind h with a fresh fallback session.
func (s *Service) Retrieve(ctx context.Context, q query.Query, h index.Handle) (result.Retrieval, error) {
	return s.RetrieveWith(ctx, q, h, s.policy.Begin())
}

// RetrieveWith runs q using an existing fallback session, so later calls of
// the same request observe earlier provider failures.
func (s *Service) RetrieveWith(
	ctx context.Context, q query.Query, h index.Handle, sess *relevance.Session,
) (result.Retrieval, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("paperrag.top_k", q.TopK()))

	out, err := s.retrieve(ctx, q, h, sess)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve failed")
		return result.Retrieval{}, domain.Wrap(ctx, err)
	}
	span.SetAttributes(
		attribute.Int("paperrag.results", len(out.Results)),
		attribute.String("paperrag.provider_used", out.ProviderUsed),
	)
	return out, nil
}

func (s *Service) retrieve(
	ctx context.Context, q query.Query, h index.Handle, sess *relevance.Session,
) (result.Retrieval, error) {
	if q.Text() == "" {
		return result.Retrieval{}, fmt.Errorf("query text is empty: %w", domain.ErrInvalidQuery)
	}
	if q.TopK() < 1 || q.TopK() > query.MaxTopK {
		return result.Retrieval{}, fmt.Errorf("top_k %d out of range [1, %d]: %w",
			q.TopK(), query.MaxTopK, domain.ErrInvalidQuery)
	}
	if h.IsEmpty() {
		return result.Retrieval{}, fmt.Errorf("retrieve: %w", domain.ErrIndexEmpty)
	}
	if v := s.embedder.Version(); v != h.Version() {
		return result.Retrieval{}, fmt.Errorf("query embedder %s, index %s: %w",
			v, h.Version(), domain.ErrIndexVersionMismatch)
	}

	emb, err := s.embedder.Embed(ctx, q.Text())
	if err != nil {
		return result.Retrieval{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.searcher.SearchWhere(ctx, h, emb.Embedding, s.candidateCount(q.TopK()), q.Filters())
	if err != nil {
		return result.Retrieval{}, fmt.Errorf("search candidates: %w", err)
	}

	scored, unscored, err := s.score(ctx, q, h, hits, sess)
	if err != nil {
		return result.Retrieval{}, err
	}
	if unscored > 0 {
		logger.FromContext(ctx).Warn("Scoring deadline reached, ranking remaining candidates by similarity",
			zap.Int("unscored", unscored),
			zap.Int("candidates", len(hits)),
		)
	}

	return result.Retrieval{
		Results:      result.Rank(scored, q.TopK()),
		ProviderUsed: sess.ProviderUsed(),
	}, nil
}

func (s *Service) candidateCount(topK int) int {
	n := topK * s.cfg.OverFetch
	if n > s.cfg.MaxCandidates {
		n = s.cfg.MaxCandidates
	}
	if n < topK {
		n = topK
	}
	return n
}

// score blends a relevance score into every hit. Hits whose scoring did not
// finish before the deadline keep their raw similarity.
func (s *Service) score(
	ctx context.Context, q query.Query, h index.Handle, hits []index.Hit, sess *relevance.Session,
) ([]result.ScoredResult, int, error) {
	scoreCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	out := make([]result.ScoredResult, len(hits))
	scoredOK := make([]bool, len(hits))

	g, gctx := errgroup.WithContext(scoreCtx)
	g.SetLimit(max(1, min(len(hits), s.cfg.Workers)))
	for i, hit := range hits {
		doc, _ := h.Document(hit.DocumentID)
		out[i] = result.ScoredResult{
			DocumentID: hit.DocumentID,
			Title:      doc.Title(),
			Similarity: hit.Similarity,
			Score:      result.Blend(0, hit.Similarity, 0, 1),
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sc, err := sess.Score(gctx, q.Text(), &doc)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("score candidates: %w", err)
			}
			out[i].Score = result.Blend(sc.Value, hit.Similarity, s.cfg.ScorerWeight, s.cfg.SimilarityWeight)
			out[i].Explanation = sc.Explanation
			scoredOK[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	unscored := 0
	for _, ok := range scoredOK {
		if !ok {
			unscored++
		}
	}
	return out, unscored, nil
}
