package document

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	meta := map[string]string{"venue": "ICML"}
	nums := map[string]float64{"year": 2021}

	doc, err := New("doc-1", KindCSVRow, "Title", "hello world", meta, nums)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "doc-1" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if doc.Kind() != KindCSVRow {
		t.Errorf("Kind() = %q", doc.Kind())
	}
	if doc.Text() != "hello world" {
		t.Errorf("Text() = %q", doc.Text())
	}
	if doc.Metadata()["venue"] != "ICML" {
		t.Errorf("Metadata() = %v", doc.Metadata())
	}
	if doc.Numerics()["year"] != 2021 {
		t.Errorf("Numerics() = %v", doc.Numerics())
	}
	if doc.ContentHash() != ContentHash("Title", "hello world") {
		t.Errorf("ContentHash() = %q", doc.ContentHash())
	}
	if doc.Embedding() != nil {
		t.Error("Embedding() should be nil for new document")
	}
}

func TestNew_ClonesMaps(t *testing.T) {
	meta := map[string]string{"k": "v"}
	nums := map[string]float64{"n": 1.0}

	doc, _ := New("doc-1", KindPDF, "", "content", meta, nums)

	meta["k"] = "mutated"
	nums["n"] = 999

	if doc.Metadata()["k"] != "v" {
		t.Error("Metadata mutation leaked into document")
	}
	if doc.Numerics()["n"] != 1.0 {
		t.Error("Numerics mutation leaked into document")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		kind SourceKind
		text string
		want string
	}{
		{"empty id", "", KindPDF, "x", "required"},
		{"long id", strings.Repeat("a", 257), KindPDF, "x", "too long"},
		{"bad chars", "a b", KindPDF, "x", "invalid characters"},
		{"bad kind", "a", SourceKind("docx"), "x", "source kind"},
		{"empty text", "a", KindCSVRow, "", "empty"},
		{"huge text", "a", KindCSVRow, strings.Repeat("x", MaxTextSize+1), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.kind, "t", tt.text, nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestContentHash_TitleAndTextSeparated(t *testing.T) {
	if ContentHash("ab", "c") == ContentHash("a", "bc") {
		t.Error("hash must distinguish the title/text boundary")
	}
	if ContentHash("a", "b") != ContentHash("a", "b") {
		t.Error("hash must be deterministic")
	}
}

func TestWithEmbedding_DoesNotMutateOriginal(t *testing.T) {
	doc, _ := New("doc-1", KindPDF, "t", "text", nil, nil)
	withVec := doc.WithEmbedding([]float32{1, 0})

	if doc.Embedding() != nil {
		t.Error("original document mutated")
	}
	if len(withVec.Embedding()) != 2 {
		t.Errorf("Embedding() = %v", withVec.Embedding())
	}
	if withVec.ID() != "doc-1" || withVec.ContentHash() != doc.ContentHash() {
		t.Error("WithEmbedding should preserve other fields")
	}
}

func TestReconstruct(t *testing.T) {
	doc := Reconstruct("x", KindPDF, "T", "body", nil, nil, "hash", []float32{0.5})
	if doc.ContentHash() != "hash" {
		t.Errorf("ContentHash() = %q", doc.ContentHash())
	}
	if doc.Embedding()[0] != 0.5 {
		t.Errorf("Embedding() = %v", doc.Embedding())
	}
}
