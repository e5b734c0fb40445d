package index

import (
	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

// Entry is one indexed document embedding. Entries are never mutated;
// an update produces a new entry in a new generation.
type Entry struct {
	DocumentID  string
	ContentHash string
	Embedding   []float32 // L2-normalized, all zeros when the raw vector had no norm
	Generation  uint64
}

func (e *Entry) searchable() bool {
	for _, x := range e.Embedding {
		if x != 0 {
			return true
		}
	}
	return false
}

// generation is an immutable published index state.
type generation struct {
	number      uint64
	version     domain.ModelVersion
	instruction string
	entries     []Entry // sorted by DocumentID
	docs        map[string]document.Document
	byID        map[string]int
}

func newGeneration(
	number uint64, version domain.ModelVersion, instruction string,
	entries []Entry, docs map[string]document.Document,
) *generation {
	byID := make(map[string]int, len(entries))
	for i := range entries {
		byID[entries[i].DocumentID] = i
	}
	return &generation{
		number: number, version: version, instruction: instruction,
		entries: entries, docs: docs, byID: byID,
	}
}

// Handle is a consistent read view of one generation. The zero Handle is an empty index.
type Handle struct {
	gen *generation
}

// IsEmpty reports whether the handle has no entries.
func (h Handle) IsEmpty() bool { return h.gen == nil || len(h.gen.entries) == 0 }

// Generation returns the generation number, 0 for an empty index.
func (h Handle) Generation() uint64 {
	if h.gen == nil {
		return 0
	}
	return h.gen.number
}

// Version returns the embedding model version of the generation.
func (h Handle) Version() domain.ModelVersion {
	if h.gen == nil {
		return domain.ModelVersion{}
	}
	return h.gen.version
}

// Len returns the number of entries, including ones excluded from search.
func (h Handle) Len() int {
	if h.gen == nil {
		return 0
	}
	return len(h.gen.entries)
}

// Document returns the indexed document for id.
func (h Handle) Document(id string) (document.Document, bool) {
	if h.gen == nil {
		return document.Document{}, false
	}
	d, ok := h.gen.docs[id]
	return d, ok
}

// Documents returns the documents for ids that are present in the generation.
func (h Handle) Documents(ids []string) map[string]document.Document {
	out := make(map[string]document.Document, len(ids))
	for _, id := range ids {
		if d, ok := h.Document(id); ok {
			out[id] = d
		}
	}
	return out
}

// Entries returns a copy of the entry set in DocumentID order.
func (h Handle) Entries() []Entry {
	if h.gen == nil {
		return nil
	}
	out := make([]Entry, len(h.gen.entries))
	copy(out, h.gen.entries)
	return out
}

// Entry returns the entry for id.
func (h Handle) Entry(id string) (Entry, bool) {
	if h.gen == nil {
		return Entry{}, false
	}
	i, ok := h.gen.byID[id]
	if !ok {
		return Entry{}, false
	}
	return h.gen.entries[i], true
}
