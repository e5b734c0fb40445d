package answer

import (
	"context"

	"github.com/kailas-cloud/paperrag/internal/domain/query"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
)

// Retriever produces ranked results within an existing fallback session.
type Retriever interface {
	RetrieveWith(ctx context.Context, q query.Query, h index.Handle, sess *relevance.Session) (result.Retrieval, error)
}
