package chi

import (
	"context"

	"github.com/kailas-cloud/paperrag/internal/domain/query"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/usecase/health"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
	"github.com/kailas-cloud/paperrag/internal/usecase/rank"
)

// Retriever ranks documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q query.Query, h index.Handle) (result.Retrieval, error)
}

// Answerer answers a question from retrieved documents.
type Answerer interface {
	Ask(ctx context.Context, q query.Query, h index.Handle) (result.AnswerResult, error)
}

// Ranker scores a summary CSV against a query.
type Ranker interface {
	RankPapers(ctx context.Context, query, csvPath, outputDir string) (rank.Result, error)
}

// IndexSource exposes the published index generation.
type IndexSource interface {
	Current() index.Handle
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
