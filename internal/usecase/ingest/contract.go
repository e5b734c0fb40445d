package ingest

import (
	"context"

	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/source"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
)

// Normalizer turns a raw source item into a Document.
type Normalizer interface {
	Normalize(raw source.Raw) (document.Document, error)
}

// Indexer builds and persists the embedding index.
type Indexer interface {
	Build(ctx context.Context, docs []document.Document) (index.Handle, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) (index.Handle, error)
	Reset(ctx context.Context) error
}

// CachePurger drops cached embeddings.
type CachePurger interface {
	Purge(ctx context.Context) (int, error)
}
