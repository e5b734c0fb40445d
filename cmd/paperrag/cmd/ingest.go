package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/paperrag/internal/domain/batch"
	ingestuc "github.com/kailas-cloud/paperrag/internal/usecase/ingest"
)

var (
	ingestCSV     string
	ingestPDFDir  string
	ingestRebuild bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Normalize the corpus and build the embedding index",
	Long: `Read the summary CSV and the PDF directory, normalize every record, embed
the documents and persist the index snapshot.

Records that fail validation are reported and skipped; the rest are upserted
into the persisted index, reusing the embeddings of unchanged documents.

Examples:
  paperrag ingest
  paperrag ingest --csv papers.csv --pdf-dir pdfs/
  paperrag ingest --rebuild`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSV, "csv", "", "Summary CSV (defaults to data.summary_csv_path)")
	ingestCmd.Flags().StringVar(&ingestPDFDir, "pdf-dir", "", "PDF directory (defaults to data.pdf_directory)")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "Drop the persisted index and embed everything again")
	rootCmd.AddCommand(ingestCmd)
}

type ingestOutput struct {
	Indexed    int            `json:"indexed"`
	Skipped    int            `json:"skipped"`
	Errors     int            `json:"errors"`
	Entries    int            `json:"entries"`
	Generation uint64         `json:"generation"`
	Saved      bool           `json:"saved"`
	Failures   []ingestFailed `json:"failures,omitempty"`
}

type ingestFailed struct {
	Source string `json:"source"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req := ingestuc.Request{CSVPath: ingestCSV, PDFDir: ingestPDFDir, Rebuild: ingestRebuild}
	if req.CSVPath == "" {
		req.CSVPath = cfg.Data.SummaryCSVPath
	}
	if req.PDFDir == "" {
		req.PDFDir = cfg.Data.PDFDirectory
	}

	report, err := a.ingest.Ingest(ctx, req)
	if err != nil {
		return err
	}

	out := ingestOutput{
		Indexed:    report.Count(batch.StatusOK),
		Skipped:    report.Count(batch.StatusSkipped),
		Errors:     report.Count(batch.StatusError),
		Entries:    report.Handle.Len(),
		Generation: report.Handle.Generation(),
		Saved:      report.Saved,
	}
	for _, f := range report.Failures() {
		out.Failures = append(out.Failures, ingestFailed{
			Source: f.Source(),
			Status: string(f.Status()),
			Error:  f.Err().Error(),
		})
	}

	if outputFormat == outputJSON {
		return printJSON(out)
	}
	fmt.Printf("Indexed %d documents (%d skipped, %d errors)\n", out.Indexed, out.Skipped, out.Errors)
	for _, f := range out.Failures {
		fmt.Printf("  %-7s %s: %s\n", f.Status, f.Source, f.Error)
	}
	if out.Saved {
		fmt.Printf("Index %q generation %d saved with %d entries\n", cfg.Storage.IndexName, out.Generation, out.Entries)
	}
	return nil
}
