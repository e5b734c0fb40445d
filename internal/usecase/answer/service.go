// Package answer synthesizes a cited answer from ranked documents.
package answer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/query"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/metrics"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
)

var tracer = otel.Tracer("paperrag/answer")

// DefaultMaxContextChars is the context window budget when none is configured.
const DefaultMaxContextChars = 12000

// Service is the answer synthesizer.
type Service struct {
	retriever       Retriever
	policy          *relevance.Policy
	maxContextChars int
}

// New creates an answer synthesizer. policy must be the one the retriever scores with.
func New(retriever Retriever, policy *relevance.Policy, maxContextChars int) *Service {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Service{retriever: retriever, policy: policy, maxContextChars: maxContextChars}
}

// Ask retrieves for q and answers from the ranked results. Both stages share
// one fallback session.
func (s *Service) Ask(ctx context.Context, q query.Query, h index.Handle) (result.AnswerResult, error) {
	sess := s.policy.Begin()
	ranked, err := s.retriever.RetrieveWith(ctx, q, h, sess)
	if err != nil {
		return result.AnswerResult{}, err
	}

	ids := make([]string, len(ranked.Results))
	for i, r := range ranked.Results {
		ids[i] = r.DocumentID
	}
	return s.synthesize(ctx, q, ranked.Results, h.Documents(ids), sess)
}

// Synthesize answers q from ranked, whose documents are looked up in docsByID.
func (s *Service) Synthesize(
	ctx context.Context, q query.Query, ranked []result.ScoredResult, docsByID map[string]document.Document,
) (result.AnswerResult, error) {
	return s.synthesize(ctx, q, ranked, docsByID, s.policy.Begin())
}

func (s *Service) synthesize(
	ctx context.Context, q query.Query, ranked []result.ScoredResult,
	docsByID map[string]document.Document, sess *relevance.Session,
) (result.AnswerResult, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "answer.synthesize")
	defer span.End()

	passages, err := s.buildContext(ctx, ranked, docsByID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context build failed")
		return result.AnswerResult{}, domain.Wrap(ctx, err)
	}
	span.SetAttributes(attribute.Int("paperrag.passages", len(passages)))

	text, err := sess.Generate(ctx, q.Text(), passages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return result.AnswerResult{}, domain.Wrap(ctx, fmt.Errorf("generate answer: %w", err))
	}

	citations := make([]string, len(passages))
	for i, p := range passages {
		citations[i] = p.DocumentID
	}
	return result.AnswerResult{
		AnswerText:   text,
		Citations:    citations,
		ProviderUsed: sess.ProviderUsed(),
	}, nil
}

// buildContext takes documents in rank order while their rendered blocks fit
// the budget. Everything after the first block that does not fit is dropped.
func (s *Service) buildContext(
	ctx context.Context, ranked []result.ScoredResult, docsByID map[string]document.Document,
) ([]relevance.Passage, error) {
	var (
		passages []relevance.Passage
		used     int
	)
	for i, r := range ranked {
		doc, ok := docsByID[r.DocumentID]
		if !ok {
			logger.FromContext(ctx).Warn("Ranked document missing from index, skipped",
				zap.String("document_id", r.DocumentID))
			continue
		}
		p := relevance.Passage{
			Marker:     len(passages) + 1,
			DocumentID: doc.ID(),
			Title:      doc.Title(),
			Text:       doc.Text(),
		}
		size := utf8.RuneCountInString(relevance.FormatPassage(p))
		if used+size > s.maxContextChars {
			if len(passages) == 0 {
				return nil, fmt.Errorf("document %s needs %d chars, budget is %d; reduce top_k or raise answer.max_context_chars: %w",
					doc.ID(), size, s.maxContextChars, domain.ErrContextTooLarge)
			}
			logger.FromContext(ctx).Debug("Context budget reached",
				zap.Int("included", len(passages)),
				zap.Int("dropped", len(ranked)-i),
			)
			break
		}
		used += size
		passages = append(passages, p)
	}
	return passages, nil
}
