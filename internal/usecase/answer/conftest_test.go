package answer

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
)

// --- Mocks ---

type mockChat struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (m *mockChat) Name() string { return "mock" }

func (m *mockChat) Complete(_ context.Context, _ domain.ChatRequest) (domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.ChatResponse{}, m.err
	}
	return domain.ChatResponse{Content: m.content}, nil
}

func (m *mockChat) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Helpers ---

func makeDoc(t *testing.T, id, title, text string) document.Document {
	t.Helper()
	doc, err := document.New(id, document.KindCSVRow, title, text, nil, nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}

func rankedOf(docs ...document.Document) ([]result.ScoredResult, map[string]document.Document) {
	ranked := make([]result.ScoredResult, len(docs))
	byID := make(map[string]document.Document, len(docs))
	for i, d := range docs {
		ranked[i] = result.ScoredResult{DocumentID: d.ID(), Title: d.Title(), Rank: i + 1}
		byID[d.ID()] = d
	}
	return ranked, byID
}
