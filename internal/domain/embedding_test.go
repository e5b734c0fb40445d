package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func (s *stubEmbedder) Version() ModelVersion { return ModelVersion{Model: "stub", Dimensions: 3} }

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "search_document: ")

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "search_document: hello world" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
	if emb.Version() != inner.Version() {
		t.Errorf("Version() = %v, want inner version", emb.Version())
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}
	emb := NewInstructionEmbedder(inner, "search_document: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionOf(t *testing.T) {
	inner := &stubEmbedder{}
	if got := InstructionOf(inner); got != "" {
		t.Errorf("plain embedder instruction = %q", got)
	}
	emb := NewInstructionEmbedder(inner, "search_document: ")
	if got := InstructionOf(emb); got != "search_document: " {
		t.Errorf("InstructionOf = %q", got)
	}
	if emb.Version() != inner.Version() {
		t.Error("instruction must not change the model version")
	}
}

func TestModelVersion_String(t *testing.T) {
	v := ModelVersion{Model: "text-embedding-3-small", Dimensions: 1536}
	if v.String() != "text-embedding-3-small@1536" {
		t.Errorf("String() = %q", v.String())
	}
	if v.IsZero() || !(ModelVersion{}).IsZero() {
		t.Error("IsZero() mismatch")
	}
}

func TestL2Normalize(t *testing.T) {
	out, norm := L2Normalize([]float32{3, 4})
	if norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(float64(out[0])-0.6) > 1e-6 || math.Abs(float64(out[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", out)
	}
	if math.Abs(Dot(out, out)-1) > 1e-6 {
		t.Errorf("unit vector self-dot = %v", Dot(out, out))
	}
}

func TestL2Normalize_ZeroAndNaN(t *testing.T) {
	for _, v := range [][]float32{{0, 0, 0}, {float32(math.NaN()), 1}, {float32(math.Inf(1)), 0}} {
		out, norm := L2Normalize(v)
		if norm != 0 {
			t.Errorf("L2Normalize(%v) norm = %v, want 0", v, norm)
		}
		for _, x := range out {
			if x != 0 {
				t.Errorf("L2Normalize(%v) = %v, want zeros", v, out)
			}
		}
	}
}

func TestErrorKinds(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-42")

	err := Wrap(ctx, errors.Join(ErrIndexEmpty))
	if KindOf(err) != KindIndexEmpty {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	var de *Error
	if !errors.As(err, &de) || de.CorrelationID != "req-42" {
		t.Fatalf("expected *Error with correlation id, got %v", err)
	}
	if !errors.Is(err, ErrIndexEmpty) {
		t.Error("wrapped error should unwrap to sentinel")
	}
	if Wrap(ctx, err) != err {
		t.Error("Wrap should not double-wrap")
	}
	if Wrap(ctx, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("unclassified error should be internal")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrProviderUnavailable, true},
		{ErrProviderTimeout, true},
		{ErrProviderResponse, false},
		{errors.New("x"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestProviderStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrProviderUnavailable},
		{429, ErrProviderUnavailable},
		{503, ErrProviderUnavailable},
		{504, ErrProviderTimeout},
		{408, ErrProviderTimeout},
		{400, ErrProviderResponse},
		{422, ErrProviderResponse},
	}
	for _, tt := range tests {
		if got := ProviderStatusError(tt.status); !errors.Is(got, tt.want) {
			t.Errorf("ProviderStatusError(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestProviderTransportError(t *testing.T) {
	if got := ProviderTransportError(context.DeadlineExceeded); got != ErrProviderTimeout {
		t.Errorf("deadline = %v", got)
	}
	if got := ProviderTransportError(errors.New("connection refused")); got != ErrProviderUnavailable {
		t.Errorf("refused = %v", got)
	}
}
