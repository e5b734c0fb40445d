package relevance

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

// --- Mocks ---

type mockChat struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
	lastReq domain.ChatRequest
}

func (m *mockChat) Name() string { return "mock" }

func (m *mockChat) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
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

func makeDoc(t *testing.T, id, title, body string) document.Document {
	t.Helper()
	doc, err := document.New(id, document.KindCSVRow, title, body, nil, nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}
