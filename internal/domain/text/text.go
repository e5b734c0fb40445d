// Package text holds the deterministic text analysis shared by the local
// embedder, the local scorer and the record normalizer.
package text

import (
	"regexp"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its",
		"this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further",
		"than", "so", "such", "into", "about", "between", "through", "during", "before", "after",
		"above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don",
		"should", "now", "we", "our", "which", "what", "how", "do", "does", "via", "using", "use",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether the lowercase token is ignored by Tokenize.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Tokenize lowercases s, splits it on every non letter/digit rune (so
// "self-supervised" yields "self" and "supervised") and drops stopwords and
// single-letter tokens. Order and duplicates are preserved.
func Tokenize(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	out := raw[:0]
	for _, t := range raw {
		if len([]rune(t)) < 2 && !isDigit(t) {
			continue
		}
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Terms returns the distinct tokens of s in first-seen order.
func Terms(s string) []string {
	toks := Tokenize(s)
	seen := make(map[string]struct{}, len(toks))
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizeWhitespace collapses every whitespace run to one space and trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sentences splits s on terminal punctuation and newlines. Empty fragments are dropped.
func Sentences(s string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(s, -1) {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Truncate cuts s to at most n runes, appending "..." when it was shortened.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func isDigit(t string) bool {
	return t != "" && t[0] >= '0' && t[0] <= '9'
}
