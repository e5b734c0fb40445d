package retrieval

import (
	"context"

	"github.com/kailas-cloud/paperrag/internal/domain/filter"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
)

// Searcher runs similarity search over an index generation.
type Searcher interface {
	SearchWhere(ctx context.Context, h index.Handle, vec []float32, topK int, f filter.Expression) ([]index.Hit, error)
}
