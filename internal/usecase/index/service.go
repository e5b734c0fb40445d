// Package index maintains the embedding index: copy-on-write generations of
// L2-normalized document embeddings searched by cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/filter"
	"github.com/kailas-cloud/paperrag/internal/domain/snapshot"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

// DefaultWorkers bounds concurrent embedding calls during Build.
const DefaultWorkers = 8

// Hit is one search result.
type Hit struct {
	DocumentID string
	Similarity float64
}

// Service owns the published generation. Build is serialized; Search is lock-free.
type Service struct {
	embedder domain.Embedder
	repo     SnapshotRepository
	name     string
	workers  int
	logger   *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[generation]
}

// New creates an index over embedder. repo may be nil when persistence is not needed.
func New(embedder domain.Embedder, repo SnapshotRepository, name string, workers int, logger *zap.Logger) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, repo: repo, name: name, workers: workers, logger: logger}
}

// Current returns a handle on the published generation.
func (s *Service) Current() Handle { return Handle{gen: s.current.Load()} }

// Entries returns the size of the published generation.
func (s *Service) Entries() int { return s.Current().Len() }

// Version returns the embedder's model version.
func (s *Service) Version() domain.ModelVersion { return s.embedder.Version() }

// Build upserts docs into a new generation and publishes it. Documents whose
// ID, content hash, model version and document instruction are already
// indexed are reused without embedding; when nothing changes the current
// generation is returned as is.
// Documents not in docs stay indexed.
func (s *Service) Build(ctx context.Context, docs []document.Document) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("build").Observe(time.Since(start).Seconds())
	}()

	cur := s.current.Load()
	version := s.embedder.Version()
	instruction := domain.InstructionOf(s.embedder)
	incoming := s.dedupe(docs)

	sameSpace := cur != nil && cur.version == version && cur.instruction == instruction
	var reuse map[string]Entry
	if sameSpace {
		reuse = make(map[string]Entry, len(cur.entries))
		for _, e := range cur.entries {
			reuse[e.DocumentID] = e
		}
	}

	merged := make(map[string]document.Document, len(incoming))
	if cur != nil {
		for id, d := range cur.docs {
			merged[id] = d
		}
	}
	var pending []document.Document
	for _, d := range incoming {
		merged[d.ID()] = d
		if e, ok := reuse[d.ID()]; ok && e.ContentHash == d.ContentHash() {
			continue
		}
		pending = append(pending, d)
	}
	if !sameSpace && cur != nil {
		// Re-embed retained documents into the new space.
		pending = pending[:0]
		for _, d := range merged {
			pending = append(pending, d)
		}
	}

	if len(pending) == 0 {
		if cur == nil {
			return Handle{}, nil
		}
		s.logger.Debug("Index unchanged", zap.Uint64("generation", cur.number))
		return Handle{gen: cur}, nil
	}

	number := uint64(1)
	if cur != nil {
		number = cur.number + 1
	}

	fresh, err := s.embedAll(ctx, pending, version, number)
	if err != nil {
		return Handle{}, err
	}

	entries := make([]Entry, 0, len(merged))
	for id := range merged {
		if e, ok := fresh[id]; ok {
			entries = append(entries, e)
			continue
		}
		entries = append(entries, reuse[id])
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocumentID < entries[j].DocumentID })

	for id, d := range merged {
		if e := fresh[id]; e.Embedding != nil {
			merged[id] = d.WithEmbedding(e.Embedding)
		}
	}

	gen := newGeneration(number, version, instruction, entries, merged)
	s.publish(gen)
	s.logger.Info("Index generation published",
		zap.Uint64("generation", number),
		zap.Int("entries", len(entries)),
		zap.Int("embedded", len(fresh)),
		zap.String("model", version.String()),
	)
	return Handle{gen: gen}, nil
}

// embedAll embeds docs on a bounded pool. Results are keyed by document ID.
func (s *Service) embedAll(
	ctx context.Context, docs []document.Document, version domain.ModelVersion, number uint64,
) (map[string]Entry, error) {
	vectors := make([][]float32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(docs), s.workers))
	for i := range docs {
		g.Go(func() error {
			res, err := s.embedder.Embed(gctx, docs[i].Text())
			if err != nil {
				return fmt.Errorf("embed document %s: %w", docs[i].ID(), err)
			}
			vectors[i] = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Entry, len(docs))
	for i, d := range docs {
		vec := vectors[i]
		if version.Dimensions > 0 && len(vec) != version.Dimensions {
			return nil, fmt.Errorf("document %s embedding has %d dimensions, want %d: %w",
				d.ID(), len(vec), version.Dimensions, domain.ErrIndexVersionMismatch)
		}
		unit, norm := domain.L2Normalize(vec)
		if norm == 0 {
			s.logger.Warn("Zero-norm embedding, document excluded from search",
				zap.String("document_id", d.ID()),
			)
		}
		out[d.ID()] = Entry{
			DocumentID:  d.ID(),
			ContentHash: d.ContentHash(),
			Embedding:   unit,
			Generation:  number,
		}
	}
	return out, nil
}

func (s *Service) dedupe(docs []document.Document) []document.Document {
	seen := make(map[string]int, len(docs))
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := seen[d.ID()]; ok {
			s.logger.Warn("Duplicate document ID in build input, keeping the last one",
				zap.String("document_id", d.ID()),
			)
			out[i] = d
			continue
		}
		seen[d.ID()] = len(out)
		out = append(out, d)
	}
	return out
}

func (s *Service) publish(gen *generation) {
	s.current.Store(gen)
	metrics.IndexEntries.Set(float64(len(gen.entries)))
}

// Search returns at most topK hits by descending cosine similarity, ties by ID.
func (s *Service) Search(ctx context.Context, h Handle, vec []float32, topK int) ([]Hit, error) {
	return s.SearchWhere(ctx, h, vec, topK, filter.Expression{})
}

// SearchWhere is Search restricted to documents whose metadata matches f.
// Entries with a zero-norm embedding never appear in results.
func (s *Service) SearchWhere(
	ctx context.Context, h Handle, vec []float32, topK int, f filter.Expression,
) ([]Hit, error) {
	if h.IsEmpty() {
		return nil, fmt.Errorf("search %q: %w", s.name, domain.ErrIndexEmpty)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k %d must be positive: %w", topK, domain.ErrInvalidQuery)
	}
	gen := h.gen
	if gen.version.Dimensions > 0 && len(vec) != gen.version.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index %s: %w",
			len(vec), gen.version, domain.ErrIndexVersionMismatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	q, _ := domain.L2Normalize(vec)
	hits := make([]Hit, 0, len(gen.entries))
	for i := range gen.entries {
		e := &gen.entries[i]
		if !e.searchable() {
			continue
		}
		if !f.IsEmpty() {
			d := gen.docs[e.DocumentID]
			if !f.Matches(d.Metadata(), d.Numerics()) {
				continue
			}
		}
		hits = append(hits, Hit{DocumentID: e.DocumentID, Similarity: domain.Dot(q, e.Embedding)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Save persists the published generation. An empty index is not saved.
func (s *Service) Save(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("index has no snapshot repository")
	}
	gen := s.current.Load()
	if gen == nil {
		return fmt.Errorf("save %q: %w", s.name, domain.ErrIndexEmpty)
	}

	entries := make([]snapshot.Entry, len(gen.entries))
	for i, e := range gen.entries {
		d := gen.docs[e.DocumentID]
		entries[i] = snapshot.Entry{Document: d.WithEmbedding(e.Embedding), Generation: e.Generation}
	}
	snap := snapshot.Snapshot{
		Version:     gen.version,
		Instruction: gen.instruction,
		Generation:  gen.number,
		Entries:     entries,
	}
	if err := s.repo.Save(ctx, s.name, snap); err != nil {
		return fmt.Errorf("save index %q: %w", s.name, err)
	}
	return nil
}

// Reset deletes the persisted snapshot and unpublishes the current generation.
// The next Build starts from generation 1 and embeds every document.
func (s *Service) Reset(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("index has no snapshot repository")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("reset index %q: %w", s.name, err)
	}
	s.current.Store(nil)
	metrics.IndexEntries.Set(0)
	s.logger.Info("Index reset", zap.String("index", s.name))
	return nil
}

// Load restores and publishes the persisted generation. A snapshot built with
// another embedding model fails with domain.ErrIndexVersionMismatch.
func (s *Service) Load(ctx context.Context) (Handle, error) {
	if s.repo == nil {
		return Handle{}, errors.New("index has no snapshot repository")
	}
	snap, err := s.repo.Load(ctx, s.name)
	if err != nil {
		return Handle{}, fmt.Errorf("load index %q: %w", s.name, err)
	}
	if want := s.embedder.Version(); snap.Version != want {
		return Handle{}, fmt.Errorf("index %q was built with %s, embedder is %s: %w",
			s.name, snap.Version, want, domain.ErrIndexVersionMismatch)
	}
	if want := domain.InstructionOf(s.embedder); snap.Instruction != want {
		return Handle{}, fmt.Errorf("index %q was embedded with document instruction %q, embedder uses %q: %w",
			s.name, snap.Instruction, want, domain.ErrIndexVersionMismatch)
	}

	entries := make([]Entry, len(snap.Entries))
	docs := make(map[string]document.Document, len(snap.Entries))
	for i, se := range snap.Entries {
		d := se.Document
		entries[i] = Entry{
			DocumentID:  d.ID(),
			ContentHash: d.ContentHash(),
			Embedding:   d.Embedding(),
			Generation:  se.Generation,
		}
		docs[d.ID()] = d
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocumentID < entries[j].DocumentID })

	s.mu.Lock()
	defer s.mu.Unlock()
	gen := newGeneration(snap.Generation, snap.Version, snap.Instruction, entries, docs)
	s.publish(gen)
	s.logger.Info("Index loaded",
		zap.String("index", s.name),
		zap.Uint64("generation", gen.number),
		zap.Int("entries", len(entries)),
	)
	return Handle{gen: gen}, nil
}
