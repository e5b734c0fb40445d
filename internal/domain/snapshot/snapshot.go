package snapshot

import (
	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

// Entry is one persisted index entry: the document with its normalized
// embedding and the generation that inserted it.
type Entry struct {
	Document   document.Document
	Generation uint64
}

// Snapshot is the persisted form of an index generation.
type Snapshot struct {
	Version domain.ModelVersion
	// Instruction is the document instruction prefix the entries were embedded with.
	Instruction string
	Generation  uint64
	Entries     []Entry
}
