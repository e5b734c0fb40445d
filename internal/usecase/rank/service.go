// Package rank scores every paper of a summary CSV against a query and
// writes the ranking to a JSON file.
package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/source"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
)

// DefaultWorkers bounds concurrent scorer calls.
const DefaultWorkers = 8

var slugRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Normalizer turns a CSV row into a Document.
type Normalizer interface {
	Normalize(raw source.Raw) (document.Document, error)
}

// Paper is one ranked row. It serializes as a [title, score] pair.
type Paper struct {
	ID          string
	Title       string
	Score       float64
	Explanation string
}

// MarshalJSON implements json.Marshaler.
func (p Paper) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Title, p.Score})
}

// Result is the ranking of one CSV.
type Result struct {
	Papers       []Paper
	OutputPath   string
	ProviderUsed string
}

// Service ranks summary CSVs.
type Service struct {
	policy     *relevance.Policy
	normalizer Normalizer
	outputDir  string
	workers    int
}

// New creates a ranking service. outputDir is the default output directory;
// empty means next to the CSV.
func New(policy *relevance.Policy, normalizer Normalizer, outputDir string, workers int) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{policy: policy, normalizer: normalizer, outputDir: outputDir, workers: workers}
}

// RankPapers scores every row of csvPath against query, sorts by score
// descending (ties by title) and writes <slug>.json. outputDir overrides the
// configured directory. An empty CSV yields an empty result and no file.
func (s *Service) RankPapers(ctx context.Context, query, csvPath, outputDir string) (Result, error) {
	res, err := s.rank(ctx, query, csvPath, outputDir)
	if err != nil {
		return Result{}, domain.Wrap(ctx, err)
	}
	return res, nil
}

func (s *Service) rank(ctx context.Context, query, csvPath, outputDir string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("query text is empty: %w", domain.ErrInvalidQuery)
	}
	rows, err := source.ReadCSV(csvPath)
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}

	log := logger.FromContext(ctx)
	docs := make([]document.Document, 0, len(rows))
	for _, raw := range rows {
		doc, err := s.normalizer.Normalize(raw)
		if err != nil {
			log.Warn("Row skipped", zap.String("source", raw.Source), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	sess := s.policy.Begin()
	if len(docs) == 0 {
		return Result{ProviderUsed: sess.ProviderUsed()}, nil
	}

	papers := make([]Paper, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(docs), s.workers))
	for i := range docs {
		g.Go(func() error {
			sc, err := sess.Score(gctx, query, &docs[i])
			if err != nil {
				return fmt.Errorf("score %s: %w", docs[i].ID(), err)
			}
			papers[i] = Paper{
				ID:          docs[i].ID(),
				Title:       docs[i].Title(),
				Score:       sc.Value,
				Explanation: sc.Explanation,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].Score != papers[j].Score {
			return papers[i].Score > papers[j].Score
		}
		return papers[i].Title < papers[j].Title
	})

	path := filepath.Join(s.resolveDir(outputDir, csvPath), Slug(query)+".json")
	if err := writeJSON(path, papers); err != nil {
		return Result{}, err
	}
	log.Info("Ranking written",
		zap.String("path", path),
		zap.Int("papers", len(papers)),
		zap.String("provider_used", sess.ProviderUsed()),
	)
	return Result{Papers: papers, OutputPath: path, ProviderUsed: sess.ProviderUsed()}, nil
}

func (s *Service) resolveDir(override, csvPath string) string {
	switch {
	case override != "":
		return override
	case s.outputDir != "":
		return s.outputDir
	default:
		return filepath.Dir(csvPath)
	}
}

// Slug turns a query into a file name stem: runs of non-alphanumerics become
// "-", the result is lowercased and trimmed. An empty slug becomes "query".
func Slug(query string) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(query, "-"), "-")
	if slug == "" {
		return "query"
	}
	return strings.ToLower(slug)
}

func writeJSON(path string, papers []Paper) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write ranking: %w", err)
	}
	return nil
}
