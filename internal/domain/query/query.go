package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/filter"
)

// TopK bounds.
const (
	DefaultTopK = 5
	MaxTopK     = 100
)

// Query is a validated retrieval request.
type Query struct {
	text    string
	topK    int
	filters filter.Expression
}

// New validates and creates a Query. topK must lie in [1, MaxTopK].
func New(text string, topK int, filters filter.Expression) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("query text is empty: %w", domain.ErrInvalidQuery)
	}
	if topK < 1 || topK > MaxTopK {
		return Query{}, fmt.Errorf("top_k %d out of range [1, %d]: %w", topK, MaxTopK, domain.ErrInvalidQuery)
	}
	return Query{text: text, topK: topK, filters: filters}, nil
}

// Text returns the trimmed query text.
func (q Query) Text() string { return q.text }

// TopK returns the number of results requested.
func (q Query) TopK() int { return q.topK }

// Filters returns the metadata filter, empty when none was given.
func (q Query) Filters() filter.Expression { return q.filters }
