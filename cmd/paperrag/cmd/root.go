// Package cmd implements the paperrag command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/config"
	"github.com/kailas-cloud/paperrag/internal/domain"
	logpkg "github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var (
	// configPath is an explicit config file, overriding config/<env>.yaml
	configPath string
	// envName selects config/<env>.yaml and the log format
	envName string
	// debug forces debug logging
	debug bool
	// outputFormat is the output format (text, json)
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paperrag",
	Short: "Retrieval and relevance engine for research paper corpora",
	Long: `paperrag indexes a corpus of research papers (a summary CSV and a directory
of PDFs), retrieves the documents most relevant to a query and answers
questions with citations.

Examples:
  # Build the index from the configured CSV and PDF directory
  paperrag ingest

  # Rank indexed documents for a query
  paperrag search --top-k 3 "self-supervised learning for computer vision"

  # Answer a question from the corpus
  paperrag ask "which papers use contrastive objectives?"

  # Score every row of the summary CSV and write <query>.json
  paperrag relevance "graph neural networks"

  # Serve the HTTP API
  paperrag serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if outputFormat != outputText && outputFormat != outputJSON {
			return fmt.Errorf("unknown output format %q (want text or json)", outputFormat)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (defaults to config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(), "Environment: local, dev, prod")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "Output format: text, json")
}

// setup loads configuration and the logger, and returns a context carrying a
// fresh correlation ID.
func setup(cmd *cobra.Command) (context.Context, config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, envName)
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger, err := logpkg.NewLogger(envName, level)
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logpkg.WithCorrelation(ctx, logger, uuid.NewString())
	return ctx, cfg, logger, nil
}

type errorOutput struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func printError(err error) {
	out := errorOutput{Code: string(domain.KindOf(err)), Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		out.Message = de.Err.Error()
		out.CorrelationID = de.CorrelationID
	}

	if outputFormat == outputJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	if out.CorrelationID != "" {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s (correlation_id=%s)\n", out.Code, out.Message, out.CorrelationID)
		return
	}
	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", out.Code, out.Message)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
