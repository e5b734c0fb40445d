package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	relevanceCSV       string
	relevanceOutputDir string
)

var relevanceCmd = &cobra.Command{
	Use:   "relevance <query>",
	Short: "Score every paper of a summary CSV and write <query>.json",
	Long: `Score every row of a summary CSV against a query, print the papers sorted by
relevance and write them as [title, score] pairs to <query-slug>.json.

Examples:
  paperrag relevance "vision transformers"
  paperrag relevance --csv papers.csv --output-dir out/ "graph neural networks"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRelevance,
}

func init() {
	relevanceCmd.Flags().StringVar(&relevanceCSV, "csv", "", "Summary CSV (defaults to data.summary_csv_path)")
	relevanceCmd.Flags().StringVar(&relevanceOutputDir, "output-dir", "", "Output directory (defaults to data.output_dir, then the CSV directory)")
	rootCmd.AddCommand(relevanceCmd)
}

func runRelevance(cmd *cobra.Command, args []string) error {
	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	csvPath := relevanceCSV
	if csvPath == "" {
		csvPath = cfg.Data.SummaryCSVPath
	}
	if csvPath == "" {
		return fmt.Errorf("no summary CSV: pass --csv or set data.summary_csv_path")
	}

	res, err := a.rank.RankPapers(ctx, strings.Join(args, " "), csvPath, relevanceOutputDir)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return printJSON(res.Papers)
	}
	for i, p := range res.Papers {
		fmt.Printf("%3d. %.4f  %s\n", i+1, p.Score, p.Title)
	}
	fmt.Println()
	fmt.Printf("Provider: %s\n", res.ProviderUsed)
	if res.OutputPath != "" {
		fmt.Printf("Written:  %s\n", res.OutputPath)
	}
	return nil
}
