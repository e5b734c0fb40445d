package relevance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/text"
)

const (
	maxAnswerSentences = 3
	maxExplainedTerms  = 5
)

// Local is the deterministic token-overlap scorer. It never fails and
// performs no I/O; identical inputs give bit-identical outputs.
type Local struct{}

// NewLocal creates the local scorer.
func NewLocal() *Local { return &Local{} }

// Name implements Scorer.
func (*Local) Name() string { return string(ProviderLocal) }

// Score returns the fraction of distinct query terms found in the document's
// title or text, rounded to 4 decimals.
func (*Local) Score(_ context.Context, query string, doc *document.Document) (Score, error) {
	return coverage(text.Terms(query), termSet(doc.Title()+" "+doc.Text())), nil
}

// Generate extracts the sentences sharing the most terms with the query and
// tags each with the marker of the passage it came from.
func (*Local) Generate(_ context.Context, query string, passages []Passage) (string, error) {
	if len(passages) == 0 {
		return "No documents were available to answer the question.", nil
	}
	qTerms := text.Terms(query)

	type candidate struct {
		passage  int
		sentence int
		overlap  int
		text     string
	}
	var cands []candidate
	for pi, p := range passages {
		for si, s := range text.Sentences(p.Text) {
			overlap := 0
			terms := termSet(s)
			for _, t := range qTerms {
				if _, ok := terms[t]; ok {
					overlap++
				}
			}
			if overlap > 0 {
				cands = append(cands, candidate{passage: pi, sentence: si, overlap: overlap, text: s})
			}
		}
	}

	if len(cands) == 0 {
		first := passages[0]
		lead := first.Title
		if ss := text.Sentences(first.Text); len(ss) > 0 {
			lead = ss[0]
		}
		return fmt.Sprintf("%s [%d]", lead, first.Marker), nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].overlap != cands[j].overlap {
			return cands[i].overlap > cands[j].overlap
		}
		if cands[i].passage != cands[j].passage {
			return cands[i].passage < cands[j].passage
		}
		return cands[i].sentence < cands[j].sentence
	})
	if len(cands) > maxAnswerSentences {
		cands = cands[:maxAnswerSentences]
	}
	// Present picked sentences in reading order.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].passage != cands[j].passage {
			return cands[i].passage < cands[j].passage
		}
		return cands[i].sentence < cands[j].sentence
	})

	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = fmt.Sprintf("%s [%d]", c.text, passages[c.passage].Marker)
	}
	return strings.Join(parts, " "), nil
}

func coverage(qTerms []string, docTerms map[string]struct{}) Score {
	if len(qTerms) == 0 {
		return Score{Value: 0, Explanation: "query has no searchable terms"}
	}
	var matched []string
	for _, t := range qTerms {
		if _, ok := docTerms[t]; ok {
			matched = append(matched, t)
		}
	}
	if len(matched) == 0 {
		return Score{Value: 0, Explanation: "no query terms matched"}
	}

	value := math.Round(float64(len(matched))/float64(len(qTerms))*1e4) / 1e4
	shown := matched
	if len(shown) > maxExplainedTerms {
		shown = shown[:maxExplainedTerms]
	}
	return Score{
		Value:       value,
		Explanation: fmt.Sprintf("matched %d/%d query terms: %s", len(matched), len(qTerms), strings.Join(shown, ", ")),
	}
}

func termSet(s string) map[string]struct{} {
	toks := text.Tokenize(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
