package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

// Remote scores and generates through a chat-completion provider.
type Remote struct {
	provider Provider
	chat     domain.ChatClient
}

// NewRemote creates a scorer backed by chat.
func NewRemote(p Provider, chat domain.ChatClient) *Remote {
	return &Remote{provider: p, chat: chat}
}

// Name implements Scorer.
func (r *Remote) Name() string { return string(r.provider) }

// Score implements Scorer.
func (r *Remote) Score(ctx context.Context, query string, doc *document.Document) (Score, error) {
	resp, err := r.complete(ctx, "score", scoreRequest(query, doc))
	if err != nil {
		return Score{}, fmt.Errorf("score %s: %w", doc.ID(), err)
	}
	s, err := parseScore(resp.Content)
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(r.Name(), "score", "invalid").Inc()
		return Score{}, fmt.Errorf("score %s: %w", doc.ID(), err)
	}
	return s, nil
}

// Generate implements Scorer.
func (r *Remote) Generate(ctx context.Context, query string, passages []Passage) (string, error) {
	resp, err := r.complete(ctx, "generate", answerRequest(query, passages))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("generate: empty answer: %w", domain.ErrProviderResponse)
	}
	return answer, nil
}

func (r *Remote) complete(ctx context.Context, op string, req domain.ChatRequest) (domain.ChatResponse, error) {
	start := time.Now()
	resp, err := r.chat.Complete(ctx, req)
	metrics.ScorerRequestDuration.WithLabelValues(r.Name(), op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(r.Name(), op, string(domain.KindOf(err))).Inc()
		return domain.ChatResponse{}, err
	}
	metrics.ScorerRequestsTotal.WithLabelValues(r.Name(), op, "success").Inc()
	return resp, nil
}

type scoreReply struct {
	Score       *float64 `json:"score"`
	Explanation string   `json:"explanation"`
}

type legacyScoreReply struct {
	PaperTitle string   `json:"paper_title"`
	Title      string   `json:"title"`
	Score      *float64 `json:"score"`
}

// parseScore accepts {"score": x, "explanation": "..."} or the list form
// [{"paper_title": "...", "score": x}]. Anything else, or a score outside
// [0,1], wraps domain.ErrProviderResponse.
func parseScore(content string) (Score, error) {
	content = stripCodeFence(content)
	if content == "" {
		return Score{}, fmt.Errorf("empty reply: %w", domain.ErrProviderResponse)
	}

	var out Score
	switch content[0] {
	case '{':
		var reply scoreReply
		if err := json.Unmarshal([]byte(content), &reply); err != nil {
			return Score{}, fmt.Errorf("decode score reply: %v: %w", err, domain.ErrProviderResponse)
		}
		if reply.Score == nil {
			return Score{}, fmt.Errorf("reply has no score: %w", domain.ErrProviderResponse)
		}
		out = Score{Value: *reply.Score, Explanation: strings.TrimSpace(reply.Explanation)}
	case '[':
		var list []legacyScoreReply
		if err := json.Unmarshal([]byte(content), &list); err != nil {
			return Score{}, fmt.Errorf("decode score list: %v: %w", err, domain.ErrProviderResponse)
		}
		found := false
		for _, item := range list {
			if item.Score != nil {
				out = Score{Value: *item.Score}
				found = true
				break
			}
		}
		if !found {
			return Score{}, fmt.Errorf("score list has no scored entry: %w", domain.ErrProviderResponse)
		}
	default:
		return Score{}, fmt.Errorf("reply is not JSON: %w", domain.ErrProviderResponse)
	}

	if math.IsNaN(out.Value) || out.Value < 0 || out.Value > 1 {
		return Score{}, fmt.Errorf("score %v outside [0,1]: %w", out.Value, domain.ErrProviderResponse)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
