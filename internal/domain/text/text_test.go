package text

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"hyphen split", "Self-Supervised Learning", []string{"self", "supervised", "learning"}},
		{"stopwords dropped", "learning for the computer vision", []string{"learning", "computer", "vision"}},
		{"punctuation", "GPT-4, BERT; and T5!", []string{"gpt", "4", "bert", "t5"}},
		{"single letters dropped", "a b c model", []string{"model"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTerms_Deduplicates(t *testing.T) {
	got := Terms("vision transformer vision Transformer model")
	want := []string{"vision", "transformer", "model"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := NormalizeWhitespace("  deep \n\n learning\t models  ")
	if got != "deep learning models" {
		t.Errorf("got %q", got)
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("First point. Second point? Third\nFourth!")
	want := []string{"First point.", "Second point?", "Third", "Fourth!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sentences = %v, want %v", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("a longer sentence", 8); got != "a longer..." {
		t.Errorf("got %q", got)
	}
}
