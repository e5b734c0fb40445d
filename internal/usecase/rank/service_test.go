package rank

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/usecase/normalize"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
)

type unavailableChat struct{}

func (unavailableChat) Name() string { return "down" }

func (unavailableChat) Complete(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
	return domain.ChatResponse{}, domain.ErrProviderUnavailable
}

const summaryCSV = "title,summary\n" +
	"ViT,self-supervised vision transformer\n" +
	"Seq2Seq,recurrent neural machine translation\n" +
	"SimCLR,contrastive self-supervised learning\n"

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "summary.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRankPapers_WritesSortedPairs(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, summaryCSV)
	svc := New(relevance.NewPolicy(nil), normalize.New(normalize.Options{}), "", 2)

	res, err := svc.RankPapers(context.Background(), "self-supervised learning for computer vision", csvPath, "")
	if err != nil {
		t.Fatalf("RankPapers: %v", err)
	}
	want := filepath.Join(dir, "self-supervised-learning-for-computer-vision.json")
	if res.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, want)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var pairs [][]any
	if err := json.Unmarshal(data, &pairs); err != nil {
		t.Fatalf("output is not a list of pairs: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("pairs = %v", pairs)
	}
	titles := []string{pairs[0][0].(string), pairs[1][0].(string), pairs[2][0].(string)}
	if titles[0] != "SimCLR" || titles[1] != "ViT" || titles[2] != "Seq2Seq" {
		t.Errorf("order = %v, want [SimCLR ViT Seq2Seq]", titles)
	}
	if pairs[0][1].(float64) != 0.6 || pairs[2][1].(float64) != 0 {
		t.Errorf("scores = %v", pairs)
	}
	if res.ProviderUsed != "local" {
		t.Errorf("ProviderUsed = %q", res.ProviderUsed)
	}
}

func TestRankPapers_OutputDirPrecedence(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, summaryCSV)
	configured := filepath.Join(dir, "configured")
	override := filepath.Join(dir, "override")

	svc := New(relevance.NewPolicy(nil), normalize.New(normalize.Options{}), configured, 0)
	res, err := svc.RankPapers(context.Background(), "vision", csvPath, "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(res.OutputPath) != configured {
		t.Errorf("OutputPath = %q, want under %q", res.OutputPath, configured)
	}

	res, err = svc.RankPapers(context.Background(), "vision", csvPath, override)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(res.OutputPath) != override {
		t.Errorf("OutputPath = %q, want under %q", res.OutputPath, override)
	}
}

func TestRankPapers_EmptyCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, "title,summary\n")
	svc := New(relevance.NewPolicy(nil), normalize.New(normalize.Options{}), "", 0)

	res, err := svc.RankPapers(context.Background(), "vision", csvPath, "")
	if err != nil {
		t.Fatalf("RankPapers: %v", err)
	}
	if len(res.Papers) != 0 || res.OutputPath != "" {
		t.Errorf("res = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "vision.json")); !os.IsNotExist(err) {
		t.Error("no file should be written for an empty CSV")
	}
}

func TestRankPapers_MissingCSV(t *testing.T) {
	svc := New(relevance.NewPolicy(nil), normalize.New(normalize.Options{}), "", 0)
	_, err := svc.RankPapers(context.Background(), "vision", filepath.Join(t.TempDir(), "none.csv"), "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRankPapers_FallsBackWhenProviderDown(t *testing.T) {
	csvPath := writeCSV(t, t.TempDir(), summaryCSV)
	policy := relevance.NewPolicy(relevance.NewRemote(relevance.ProviderOpenAI, unavailableChat{}))
	svc := New(policy, normalize.New(normalize.Options{}), "", 1)

	res, err := svc.RankPapers(context.Background(), "vision", csvPath, "")
	if err != nil {
		t.Fatalf("RankPapers: %v", err)
	}
	if res.ProviderUsed != result.ProviderLocalFallback {
		t.Errorf("ProviderUsed = %q", res.ProviderUsed)
	}
	if len(res.Papers) != 3 || res.Papers[0].Title != "ViT" {
		t.Errorf("papers = %+v", res.Papers)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Self-Supervised Learning!": "self-supervised-learning",
		"  graph   nets ":           "graph-nets",
		"???":                       "query",
		"":                          "query",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
