package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/filter"
	"github.com/kailas-cloud/paperrag/internal/domain/query"
)

var (
	searchTopK    int
	searchFilters []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank indexed documents for a query",
	Long: `Rank the indexed documents for a query and print the top results.

Examples:
  paperrag search "contrastive learning"
  paperrag search --top-k 10 --filter "year>=2020" "vision transformers"
  paperrag search -o json "graph neural networks"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "Number of results (defaults to retrieval.default_top_k)")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, `Metadata filter, e.g. "year>=2020" (repeatable)`)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := buildQuery(ctx, strings.Join(args, " "), searchTopK, cfg.Retrieval.DefaultTopK, searchFilters)
	if err != nil {
		return err
	}
	h, err := a.loadIndex(ctx)
	if err != nil {
		return err
	}
	res, err := a.retrieval.Retrieve(ctx, q, h)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return printJSON(res)
	}
	fmt.Printf("Query:    %s\n", q.Text())
	fmt.Printf("Provider: %s\n\n", res.ProviderUsed)
	if len(res.Results) == 0 {
		fmt.Println("No matching documents.")
		return nil
	}
	for _, r := range res.Results {
		fmt.Printf("%3d. %.4f  %s  %s\n", r.Rank, r.Score, r.DocumentID, r.Title)
		if r.Explanation != "" {
			fmt.Printf("      %s\n", r.Explanation)
		}
	}
	return nil
}

// buildQuery validates CLI input into a query. topK 0 selects defaultTopK.
func buildQuery(ctx context.Context, text string, topK, defaultTopK int, clauses []string) (query.Query, error) {
	if topK == 0 {
		topK = defaultTopK
	}
	f, err := filter.Parse(clauses)
	if err != nil {
		return query.Query{}, domain.Wrap(ctx, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err))
	}
	q, err := query.New(text, topK, f)
	if err != nil {
		return query.Query{}, domain.Wrap(ctx, err)
	}
	return q, nil
}
