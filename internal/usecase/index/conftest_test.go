package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/snapshot"
	"github.com/kailas-cloud/paperrag/internal/transport/local"
)

// --- Mocks ---

// countingEmbedder wraps an embedder and counts Embed calls.
type countingEmbedder struct {
	inner domain.Embedder
	calls atomic.Int64
	err   error
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.inner.Embed(ctx, text)
}

func (m *countingEmbedder) Version() domain.ModelVersion { return m.inner.Version() }

// fixedEmbedder returns preset vectors by text.
type fixedEmbedder struct {
	version domain.ModelVersion
	vectors map[string][]float32
}

func (m *fixedEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v, ok := m.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, errors.New("unexpected text " + text)
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

func (m *fixedEmbedder) Version() domain.ModelVersion { return m.version }

type memSnapshotRepo struct {
	mu    sync.Mutex
	snaps map[string]snapshot.Snapshot
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{snaps: make(map[string]snapshot.Snapshot)}
}

func (m *memSnapshotRepo) Save(_ context.Context, name string, s snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[name] = s
	return nil
}

func (m *memSnapshotRepo) Load(_ context.Context, name string) (snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[name]
	if !ok {
		return snapshot.Snapshot{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSnapshotRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, name)
	return nil
}

// --- Helpers ---

func newLocalIndex(t *testing.T) (*Service, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{inner: local.NewEmbedder(256)}
	return New(emb, newMemSnapshotRepo(), "papers", 4, nil), emb
}

func makeDoc(t *testing.T, id, title, text string, meta map[string]string) document.Document {
	t.Helper()
	doc, err := document.New(id, document.KindCSVRow, title, text, meta, nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}

func embedQuery(t *testing.T, s *Service, text string) []float32 {
	t.Helper()
	res, err := s.embedder.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	return res.Embedding
}
