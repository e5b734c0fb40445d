package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxTextSize is the maximum normalized text size in bytes.
const MaxTextSize = 4 << 20

// SourceKind is the origin format of a document.
type SourceKind string

// Source kinds.
const (
	KindPDF    SourceKind = "pdf"
	KindCSVRow SourceKind = "csv-row"
)

// IsValid checks if the kind is one of the supported values.
func (k SourceKind) IsValid() bool { return k == KindPDF || k == KindCSVRow }

// Document is the normalized record aggregate (immutable value object).
type Document struct {
	id          string
	kind        SourceKind
	title       string
	text        string
	metadata    map[string]string
	numerics    map[string]float64
	contentHash string
	embedding   []float32
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars. Text: non-empty, max 4MB.
func New(
	id string, kind SourceKind, title, text string,
	metadata map[string]string, numerics map[string]float64,
) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID %q contains invalid characters", id)
	}
	if !kind.IsValid() {
		return Document{}, fmt.Errorf("unknown source kind %q", kind)
	}
	if text == "" {
		return Document{}, fmt.Errorf("text is empty")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}

	return Document{
		id:          id,
		kind:        kind,
		title:       title,
		text:        text,
		metadata:    cloneStringMap(metadata),
		numerics:    cloneFloat64Map(numerics),
		contentHash: ContentHash(title, text),
	}, nil
}

// Reconstruct creates a Document without validation (snapshot hydration).
func Reconstruct(
	id string, kind SourceKind, title, text string,
	metadata map[string]string, numerics map[string]float64,
	contentHash string, embedding []float32,
) Document {
	return Document{
		id: id, kind: kind, title: title, text: text,
		metadata: metadata, numerics: numerics,
		contentHash: contentHash, embedding: embedding,
	}
}

// ContentHash returns the hex sha256 of the title and text, the identity of a document's content.
func ContentHash(title, text string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Kind returns the source kind.
func (d *Document) Kind() SourceKind { return d.kind }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Text returns the normalized body used for embedding and scoring.
func (d *Document) Text() string { return d.text }

// Metadata returns the string metadata fields.
func (d *Document) Metadata() map[string]string { return d.metadata }

// Numerics returns the metadata fields that parse as numbers.
func (d *Document) Numerics() map[string]float64 { return d.numerics }

// ContentHash returns the content identity hash.
func (d *Document) ContentHash() string { return d.contentHash }

// Embedding returns the embedding vector, nil until indexed.
func (d *Document) Embedding() []float32 { return d.embedding }

// WithEmbedding returns a copy with the given embedding set.
func (d *Document) WithEmbedding(v []float32) Document {
	c := *d
	c.embedding = v
	return c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneFloat64Map(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
