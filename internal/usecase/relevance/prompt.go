package relevance

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/text"
)

// maxPromptDocChars bounds the document text sent in a scoring prompt.
const maxPromptDocChars = 6000

const scoreSystemPrompt = "You are a meticulous research assistant. Evaluate SEMANTIC relevance of the paper " +
	"to the query based on meaning (problem/task alignment, methods/approach, domain/data, evidence/results, " +
	"recency). Do NOT rely on keyword overlap. Return STRICT JSON with exactly two keys: " +
	`"score" (a number from 0 to 1) and "explanation" (one short sentence).`

const answerSystemPrompt = "You are a research assistant answering questions about a corpus of papers. " +
	"Answer using ONLY the numbered context passages. Cite every claim with the passage number in square " +
	"brackets, e.g. [1]. If the context does not contain the answer, say so."

func scoreRequest(query string, doc *document.Document) domain.ChatRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Query:\n%s\n\n", query)
	fmt.Fprintf(&b, "Paper title:\n%s\n\n", doc.Title())
	fmt.Fprintf(&b, "Paper text:\n%s\n\n", text.Truncate(doc.Text(), maxPromptDocChars))
	b.WriteString(`Return JSON ONLY, e.g. {"score": 0.82, "explanation": "Same task and method."}`)

	return domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: scoreSystemPrompt},
			{Role: domain.RoleUser, Content: b.String()},
		},
		JSON:      true,
		MaxTokens: 200,
	}
}

func answerRequest(query string, passages []Passage) domain.ChatRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nContext:\n", query)
	b.WriteString(FormatPassages(passages))

	return domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: answerSystemPrompt},
			{Role: domain.RoleUser, Content: b.String()},
		},
	}
}

// FormatPassage renders one context block as "[n] Title\ntext\n\n".
func FormatPassage(p Passage) string {
	return fmt.Sprintf("[%d] %s\n%s\n\n", p.Marker, p.Title, p.Text)
}

// FormatPassages concatenates the rendered context blocks.
func FormatPassages(passages []Passage) string {
	var b strings.Builder
	for _, p := range passages {
		b.WriteString(FormatPassage(p))
	}
	return b.String()
}
