package result

import (
	"math"
	"sort"
)

// ProviderLocalFallback marks a result produced after a transient provider failure.
const ProviderLocalFallback = "local-fallback"

// ScoredResult is one ranked retrieval hit.
type ScoredResult struct {
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	Similarity  float64 `json:"similarity"`
	Rank        int     `json:"rank"`
	Explanation string  `json:"explanation,omitempty"`
}

// Retrieval is the ranked output of one query.
type Retrieval struct {
	Results      []ScoredResult `json:"results"`
	ProviderUsed string         `json:"provider_used"`
}

// AnswerResult is a synthesized answer with the documents it cites.
type AnswerResult struct {
	AnswerText   string   `json:"answer_text"`
	Citations    []string `json:"citations"`
	ProviderUsed string   `json:"provider_used"`
}

// Blend combines a relevance score with raw similarity.
// Negative similarity counts as 0.
func Blend(score, similarity, scoreWeight, similarityWeight float64) float64 {
	sim := math.Max(similarity, 0)
	total := scoreWeight + similarityWeight
	if total <= 0 {
		return sim
	}
	return (scoreWeight*score + similarityWeight*sim) / total
}

// Rank sorts by score desc with ties broken by document ID asc, truncates
// to topK (when positive) and assigns 1-based ranks.
func Rank(results []ScoredResult, topK int) []ScoredResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
