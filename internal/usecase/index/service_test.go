package index

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/filter"
	"github.com/kailas-cloud/paperrag/internal/transport/local"
)

var corpus = []string{
	"self-supervised vision transformer",
	"recurrent neural machine translation",
	"contrastive self-supervised learning",
	"graph neural networks for molecules",
	"diffusion models for image synthesis",
	"reinforcement learning from human feedback",
	"sparse mixture of experts language models",
	"retrieval augmented generation for question answering",
}

func buildCorpus(t *testing.T, s *Service) Handle {
	t.Helper()
	docs := make([]document.Document, len(corpus))
	for i, text := range corpus {
		docs[i] = makeDoc(t, fmt.Sprintf("doc-%02d", i), "", text, nil)
	}
	h, err := s.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func TestSearch_EmptyIndex(t *testing.T) {
	s, _ := newLocalIndex(t)
	_, err := s.Search(context.Background(), s.Current(), make([]float32, 256), 3)
	if !errors.Is(err, domain.ErrIndexEmpty) {
		t.Errorf("expected ErrIndexEmpty, got %v", err)
	}

	h, err := s.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if _, err := s.Search(context.Background(), h, make([]float32, 256), 3); !errors.Is(err, domain.ErrIndexEmpty) {
		t.Errorf("expected ErrIndexEmpty after empty build, got %v", err)
	}
}

func TestSearch_BoundsOrderUniqueness(t *testing.T) {
	s, _ := newLocalIndex(t)
	h := buildCorpus(t, s)
	rng := rand.New(rand.NewSource(7))

	queries := []string{"self-supervised learning", "neural translation", "language models", "image", "molecules graph"}
	for _, q := range queries {
		for k := 1; k <= len(corpus)+2; k++ {
			hits, err := s.Search(context.Background(), h, embedQuery(t, s, q), k)
			if err != nil {
				t.Fatalf("Search(%q, %d): %v", q, k, err)
			}
			if len(hits) > k {
				t.Fatalf("Search(%q, %d) returned %d hits", q, k, len(hits))
			}
			seen := map[string]bool{}
			for i, hit := range hits {
				if seen[hit.DocumentID] {
					t.Fatalf("duplicate %s", hit.DocumentID)
				}
				seen[hit.DocumentID] = true
				if i > 0 && hits[i-1].Similarity < hit.Similarity {
					t.Fatalf("hits not sorted: %+v", hits)
				}
			}
		}
		// Random query vectors exercise the same invariants off the corpus manifold.
		vec := make([]float32, 256)
		for i := range vec {
			vec[i] = rng.Float32()*2 - 1
		}
		hits, err := s.Search(context.Background(), h, vec, 4)
		if err != nil || len(hits) != 4 {
			t.Fatalf("random search: %v (%d hits)", err, len(hits))
		}
	}
}

func TestSearch_TieBreakByID(t *testing.T) {
	emb := &fixedEmbedder{
		version: domain.ModelVersion{Model: "fixed", Dimensions: 2},
		vectors: map[string][]float32{"b text": {1, 0}, "a text": {2, 0}, "c text": {0, 1}},
	}
	s := New(emb, nil, "t", 2, nil)
	docs := []document.Document{
		makeDoc(t, "b", "", "b text", nil),
		makeDoc(t, "a", "", "a text", nil),
		makeDoc(t, "c", "", "c text", nil),
	}
	h, err := s.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hits, err := s.Search(context.Background(), h, []float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := []string{hits[0].DocumentID, hits[1].DocumentID, hits[2].DocumentID}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", got)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	s, emb := newLocalIndex(t)
	first := buildCorpus(t, s)
	calls := emb.calls.Load()

	second := buildCorpus(t, s)
	if emb.calls.Load() != calls {
		t.Errorf("rebuild embedded %d documents", emb.calls.Load()-calls)
	}
	if first.Generation() != second.Generation() {
		t.Errorf("generation changed: %d -> %d", first.Generation(), second.Generation())
	}
	if !reflect.DeepEqual(first.Entries(), second.Entries()) {
		t.Error("entries differ after idempotent rebuild")
	}
}

func TestBuild_ReplacesChangedContent(t *testing.T) {
	s, emb := newLocalIndex(t)
	ctx := context.Background()
	h1, err := s.Build(ctx, []document.Document{
		makeDoc(t, "a", "", "vision transformer", nil),
		makeDoc(t, "b", "", "machine translation", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	before := emb.calls.Load()

	h2, err := s.Build(ctx, []document.Document{makeDoc(t, "a", "", "graph neural networks", nil)})
	if err != nil {
		t.Fatal(err)
	}
	if emb.calls.Load()-before != 1 {
		t.Errorf("expected exactly one embed call, got %d", emb.calls.Load()-before)
	}
	if h2.Generation() != h1.Generation()+1 {
		t.Errorf("generation = %d, want %d", h2.Generation(), h1.Generation()+1)
	}
	if h2.Len() != 2 {
		t.Errorf("Len = %d, want 2 (b is retained)", h2.Len())
	}

	a, _ := h2.Entry("a")
	b, _ := h2.Entry("b")
	if a.Generation != h2.Generation() || b.Generation != h1.Generation() {
		t.Errorf("entry generations a=%d b=%d", a.Generation, b.Generation)
	}
	if d, _ := h2.Document("a"); d.Text() != "graph neural networks" {
		t.Errorf("document a = %q", d.Text())
	}

	// The old handle still sees its own generation.
	if d, _ := h1.Document("a"); d.Text() != "vision transformer" {
		t.Errorf("old handle document a = %q", d.Text())
	}
	if old, _ := h1.Entry("a"); reflect.DeepEqual(old.Embedding, a.Embedding) {
		t.Error("old entry should be untouched")
	}
}

func TestBuild_DuplicateIDsLastWins(t *testing.T) {
	s, _ := newLocalIndex(t)
	h, err := s.Build(context.Background(), []document.Document{
		makeDoc(t, "x", "", "first", nil),
		makeDoc(t, "x", "", "second", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d", h.Len())
	}
	if d, _ := h.Document("x"); d.Text() != "second" {
		t.Errorf("Text = %q", d.Text())
	}
}

func TestBuild_ZeroNormExcluded(t *testing.T) {
	s, _ := newLocalIndex(t)
	h, err := s.Build(context.Background(), []document.Document{
		makeDoc(t, "stop", "", "the and of", nil),
		makeDoc(t, "real", "", "vision transformer", nil),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
	hits, err := s.Search(context.Background(), h, embedQuery(t, s, "vision"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "real" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestBuild_EmbedError(t *testing.T) {
	emb := &countingEmbedder{
		inner: &fixedEmbedder{version: domain.ModelVersion{Model: "m", Dimensions: 2}},
		err:   domain.ErrProviderUnavailable,
	}
	s := New(emb, nil, "t", 2, nil)
	_, err := s.Build(context.Background(), []document.Document{makeDoc(t, "a", "", "x", nil)})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
	if !s.Current().IsEmpty() {
		t.Error("failed build must not publish")
	}
}

func TestBuild_WrongEmbeddingDimensions(t *testing.T) {
	emb := &fixedEmbedder{
		version: domain.ModelVersion{Model: "m", Dimensions: 3},
		vectors: map[string][]float32{"x": {1, 0}},
	}
	_, err := New(emb, nil, "t", 1, nil).Build(context.Background(), []document.Document{makeDoc(t, "a", "", "x", nil)})
	if !errors.Is(err, domain.ErrIndexVersionMismatch) {
		t.Errorf("expected ErrIndexVersionMismatch, got %v", err)
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s, _ := newLocalIndex(t)
	h := buildCorpus(t, s)
	_, err := s.Search(context.Background(), h, make([]float32, 8), 3)
	if !errors.Is(err, domain.ErrIndexVersionMismatch) {
		t.Errorf("expected ErrIndexVersionMismatch, got %v", err)
	}
}

func TestSearch_InvalidTopK(t *testing.T) {
	s, _ := newLocalIndex(t)
	h := buildCorpus(t, s)
	for _, k := range []int{0, -1} {
		if _, err := s.Search(context.Background(), h, embedQuery(t, s, "x"), k); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("top_k=%d: expected ErrInvalidQuery, got %v", k, err)
		}
	}
}

func TestSearchWhere(t *testing.T) {
	s, _ := newLocalIndex(t)
	h, err := s.Build(context.Background(), []document.Document{
		makeDoc(t, "a", "", "vision transformer", map[string]string{"venue": "ICLR"}),
		makeDoc(t, "b", "", "vision models", map[string]string{"venue": "CVPR"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	f, err := filter.Parse([]string{"venue=cvpr"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := s.SearchWhere(context.Background(), h, embedQuery(t, s, "vision transformer"), 5, f)
	if err != nil {
		t.Fatalf("SearchWhere: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "b" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestBuild_ModelChangeReembedsEverything(t *testing.T) {
	first := &fixedEmbedder{
		version: domain.ModelVersion{Model: "m1", Dimensions: 2},
		vectors: map[string][]float32{"x": {1, 0}, "y": {0, 1}},
	}
	s := New(first, newMemSnapshotRepo(), "t", 2, nil)
	if _, err := s.Build(context.Background(), []document.Document{
		makeDoc(t, "a", "", "x", nil), makeDoc(t, "b", "", "y", nil),
	}); err != nil {
		t.Fatal(err)
	}

	s.embedder = &fixedEmbedder{
		version: domain.ModelVersion{Model: "m2", Dimensions: 3},
		vectors: map[string][]float32{"x": {1, 0, 0}, "y": {0, 1, 0}, "z": {0, 0, 1}},
	}
	h, err := s.Build(context.Background(), []document.Document{makeDoc(t, "c", "", "z", nil)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.Version().Model != "m2" || h.Len() != 3 {
		t.Errorf("version=%s len=%d", h.Version(), h.Len())
	}
	for _, e := range h.Entries() {
		if len(e.Embedding) != 3 || e.Generation != h.Generation() {
			t.Errorf("entry %s not re-embedded: %+v", e.DocumentID, e)
		}
	}
}

func TestBuild_InstructionChangeReembedsEverything(t *testing.T) {
	counter := &countingEmbedder{inner: local.NewEmbedder(256)}
	s := New(domain.NewInstructionEmbedder(counter, "passage: "), newMemSnapshotRepo(), "papers", 4, nil)
	h := buildCorpus(t, s)
	before := counter.calls.Load()

	if _, err := s.Build(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if got := counter.calls.Load(); got != before {
		t.Errorf("same instruction re-embedded %d documents", got-before)
	}

	s.embedder = domain.NewInstructionEmbedder(counter, "document: ")
	h2, err := s.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := counter.calls.Load() - before; got != int64(len(corpus)) {
		t.Errorf("re-embedded %d documents, want %d", got, len(corpus))
	}
	if h2.Len() != h.Len() || h2.Generation() == h.Generation() {
		t.Errorf("len=%d generation=%d", h2.Len(), h2.Generation())
	}
	for _, e := range h2.Entries() {
		if e.Generation != h2.Generation() {
			t.Errorf("entry %s kept stale embedding from generation %d", e.DocumentID, e.Generation)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	s, _ := newLocalIndex(t)
	h := buildCorpus(t, s)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New(s.embedder, s.repo, "papers", 2, nil)
	got, err := restored.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Generation() != h.Generation() || got.Version() != h.Version() {
		t.Errorf("generation/version = %d/%s", got.Generation(), got.Version())
	}
	if !reflect.DeepEqual(got.Entries(), h.Entries()) {
		t.Error("entries differ after load")
	}
	q := embedQuery(t, s, "self-supervised")
	want, _ := s.Search(context.Background(), h, q, 3)
	have, _ := restored.Search(context.Background(), restored.Current(), q, 3)
	if !reflect.DeepEqual(want, have) {
		t.Errorf("search after load = %+v, want %+v", have, want)
	}
}

func TestSaveLoad_Errors(t *testing.T) {
	s, _ := newLocalIndex(t)
	if err := s.Save(context.Background()); !errors.Is(err, domain.ErrIndexEmpty) {
		t.Errorf("Save empty: expected ErrIndexEmpty, got %v", err)
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load missing: expected ErrNotFound, got %v", err)
	}

	buildCorpus(t, s)
	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	other := New(&fixedEmbedder{version: domain.ModelVersion{Model: "other", Dimensions: 256}}, s.repo, "papers", 1, nil)
	if _, err := other.Load(context.Background()); !errors.Is(err, domain.ErrIndexVersionMismatch) {
		t.Errorf("expected ErrIndexVersionMismatch, got %v", err)
	}
	prefixed := New(domain.NewInstructionEmbedder(s.embedder, "passage: "), s.repo, "papers", 1, nil)
	if _, err := prefixed.Load(context.Background()); !errors.Is(err, domain.ErrIndexVersionMismatch) {
		t.Errorf("instruction change: expected ErrIndexVersionMismatch, got %v", err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, emb := newLocalIndex(t)
	h := buildCorpus(t, s)
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !s.Current().IsEmpty() || s.Entries() != 0 {
		t.Error("index should be empty after reset")
	}
	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load after reset: expected ErrNotFound, got %v", err)
	}

	before := emb.calls.Load()
	docs := make([]document.Document, 0, h.Len())
	for _, e := range h.Entries() {
		d, _ := h.Document(e.DocumentID)
		docs = append(docs, d)
	}
	rebuilt, err := s.Build(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Generation() != 1 {
		t.Errorf("generation = %d, want 1", rebuilt.Generation())
	}
	if got := emb.calls.Load() - before; got != int64(len(docs)) {
		t.Errorf("embedded %d documents, want %d", got, len(docs))
	}
}

func TestSearch_ConcurrentWithBuild(t *testing.T) {
	s, _ := newLocalIndex(t)
	buildCorpus(t, s)
	q := embedQuery(t, s, "learning")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h := s.Current()
				hits, err := s.Search(context.Background(), h, q, 3)
				if err != nil || len(hits) == 0 {
					t.Errorf("search: %v", err)
					return
				}
				if _, ok := h.Document(hits[0].DocumentID); !ok {
					t.Errorf("hit %s missing from its generation", hits[0].DocumentID)
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := s.Build(context.Background(), []document.Document{
			makeDoc(t, fmt.Sprintf("new-%d", i), "", "learning systems", nil),
		})
		if err != nil {
			t.Errorf("Build: %v", err)
		}
	}
	wg.Wait()
}
