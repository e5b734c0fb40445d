package domain

import (
	"context"
	"fmt"
)

// ModelVersion identifies an embedding space. Vectors from different versions are not comparable.
type ModelVersion struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// String renders the version as model@dimensions, used in cache keys and logs.
func (v ModelVersion) String() string {
	return fmt.Sprintf("%s@%d", v.Model, v.Dimensions)
}

// IsZero reports whether the version is unset.
func (v ModelVersion) IsZero() bool { return v.Model == "" && v.Dimensions == 0 }

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	Version() ModelVersion
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
// Instruction models (e5, Qwen3-Embedding) expect different prefixes for queries and documents.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// Version reports the inner embedder's version. Query and document
// embedders of one model share it even when their prefixes differ.
func (e *InstructionEmbedder) Version() ModelVersion { return e.inner.Version() }

// Instruction returns the prefix prepended to every text.
func (e *InstructionEmbedder) Instruction() string { return e.instruction }

// InstructionOf returns the instruction prefix applied by e, "" when e adds none.
// Vectors embedded under different document instructions must not be mixed.
func InstructionOf(e Embedder) string {
	if ie, ok := e.(interface{ Instruction() string }); ok {
		return ie.Instruction()
	}
	return ""
}
