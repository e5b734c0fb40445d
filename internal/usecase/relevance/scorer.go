// Package relevance scores (query, document) pairs and generates grounded
// answers, either locally or through a remote language model.
package relevance

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

// Provider names a scorer implementation, chosen once at composition time.
type Provider string

// Provider values.
const (
	ProviderLocal  Provider = "local"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Score is a relevance judgement in [0,1].
type Score struct {
	Value       float64
	Explanation string
}

// Passage is one context block handed to Generate. Marker is the 1-based
// citation number the answer may reference as [Marker].
type Passage struct {
	Marker     int
	DocumentID string
	Title      string
	Text       string
}

// Scorer is the relevance capability shared by all providers.
// Remote implementations fail with ErrProviderUnavailable, ErrProviderTimeout
// or ErrProviderResponse.
type Scorer interface {
	Name() string
	Score(ctx context.Context, query string, doc *document.Document) (Score, error)
	Generate(ctx context.Context, query string, passages []Passage) (string, error)
}

// NewScorer selects the scorer for a provider. chat is required for remote providers.
func NewScorer(p Provider, chat domain.ChatClient) (Scorer, error) {
	switch p {
	case ProviderLocal, "":
		return NewLocal(), nil
	case ProviderOpenAI, ProviderOllama:
		if chat == nil {
			return nil, fmt.Errorf("provider %q requires a chat client", p)
		}
		return NewRemote(p, chat), nil
	default:
		return nil, fmt.Errorf("unknown scorer provider %q", p)
	}
}
