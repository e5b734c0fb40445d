package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askTopK    int
	askFilters []string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed corpus",
	Long: `Retrieve the most relevant documents and synthesize an answer that cites them.

Examples:
  paperrag ask "which papers use contrastive objectives?"
  paperrag ask --top-k 3 "what is a vision transformer?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Documents used as context (defaults to retrieval.default_top_k)")
	askCmd.Flags().StringArrayVarP(&askFilters, "filter", "f", nil, `Metadata filter, e.g. "year>=2020" (repeatable)`)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := buildQuery(ctx, strings.Join(args, " "), askTopK, cfg.Retrieval.DefaultTopK, askFilters)
	if err != nil {
		return err
	}
	h, err := a.loadIndex(ctx)
	if err != nil {
		return err
	}
	res, err := a.answer.Ask(ctx, q, h)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return printJSON(res)
	}
	fmt.Println(res.AnswerText)
	fmt.Println()
	fmt.Printf("Provider:  %s\n", res.ProviderUsed)
	if len(res.Citations) > 0 {
		fmt.Println("Citations:")
		for i, id := range res.Citations {
			title := id
			if d, ok := h.Document(id); ok && d.Title() != "" {
				title = id + "  " + d.Title()
			}
			fmt.Printf("  [%d] %s\n", i+1, title)
		}
	}
	return nil
}
