// Package normalize turns raw source items into validated documents.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/domain/text"
	"github.com/kailas-cloud/paperrag/internal/source"
)

// Default CSV column names.
const (
	DefaultTextColumn  = "text"
	DefaultTitleColumn = "title"
	DefaultIDColumn    = "id"

	// fallbackTextColumn is read when the default text column is absent.
	fallbackTextColumn = "summary"
)

// Metadata keys written for PDF documents.
const (
	MetaPageCount   = "page_count"
	MetaPageOffsets = "page_offsets"
	MetaAuthor      = "author"
	MetaFileName    = "file_name"
	// MetaPath is set for PDFs read from a subdirectory.
	MetaPath        = "path"
)

const (
	pageSeparator  = "\n\n"
	derivedIDLen   = 16
	derivedTitleLn = 80
)

// Options configures CSV column mapping. Empty fields take the defaults.
type Options struct {
	TextColumn  string
	TitleColumn string
	IDColumn    string
}

// Normalizer is a pure transform from source.Raw to document.Document.
type Normalizer struct {
	textCol  string
	titleCol string
	idCol    string
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		textCol:  strings.ToLower(strings.TrimSpace(opts.TextColumn)),
		titleCol: strings.ToLower(strings.TrimSpace(opts.TitleColumn)),
		idCol:    strings.ToLower(strings.TrimSpace(opts.IDColumn)),
	}
	if n.textCol == "" {
		n.textCol = DefaultTextColumn
	}
	if n.titleCol == "" {
		n.titleCol = DefaultTitleColumn
	}
	if n.idCol == "" {
		n.idCol = DefaultIDColumn
	}
	return n
}

// Normalize converts one raw item. Every failure wraps domain.ErrValidation.
func (n *Normalizer) Normalize(raw source.Raw) (document.Document, error) {
	if got := source.KindOf(raw.Payload); got != raw.Kind {
		return document.Document{}, fmt.Errorf("%s: payload kind %q does not match %q: %w",
			raw.Source, got, raw.Kind, domain.ErrValidation)
	}

	var (
		doc document.Document
		err error
	)
	switch p := raw.Payload.(type) {
	case *source.Row:
		doc, err = n.fromRow(p)
	case *source.PDF:
		doc, err = n.fromPDF(p)
	default:
		err = fmt.Errorf("unsupported payload %T: %w", raw.Payload, domain.ErrValidation)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("%s: %w", raw.Source, err)
	}
	return doc, nil
}

func (n *Normalizer) fromRow(row *source.Row) (document.Document, error) {
	textCol := n.textCol
	raw, ok := row.Columns[textCol]
	if !ok && textCol == DefaultTextColumn {
		textCol = fallbackTextColumn
		raw, ok = row.Columns[textCol]
	}
	if !ok {
		return document.Document{}, fmt.Errorf("missing text column %q: %w", n.textCol, domain.ErrValidation)
	}
	body := text.NormalizeWhitespace(raw)
	if body == "" {
		return document.Document{}, fmt.Errorf("empty text: %w", domain.ErrValidation)
	}

	explicitTitle := text.NormalizeWhitespace(row.Columns[n.titleCol])
	title := explicitTitle
	if title == "" {
		title = text.Truncate(body, derivedTitleLn)
	}

	id := strings.TrimSpace(row.Columns[n.idCol])
	if id == "" {
		discriminator := explicitTitle
		if discriminator == "" {
			discriminator = "line " + strconv.Itoa(row.Line)
		}
		id = derivedID(document.KindCSVRow, row.File, discriminator)
	}

	metadata := make(map[string]string)
	numerics := make(map[string]float64)
	for col, v := range row.Columns {
		if col == textCol || col == n.titleCol || col == n.idCol {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		metadata[col] = v
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			numerics[col] = f
		}
	}

	return newDocument(id, document.KindCSVRow, title, body, metadata, numerics)
}

func (n *Normalizer) fromPDF(p *source.PDF) (document.Document, error) {
	var b strings.Builder
	offsets := make([]string, len(p.Pages))
	for i, page := range p.Pages {
		if i > 0 {
			b.WriteString(pageSeparator)
		}
		offsets[i] = strconv.Itoa(b.Len())
		b.WriteString(text.NormalizeWhitespace(page))
	}
	body := b.String()
	if strings.TrimSpace(body) == "" {
		return document.Document{}, fmt.Errorf("no extractable text in %d pages: %w", len(p.Pages), domain.ErrValidation)
	}

	title := text.NormalizeWhitespace(p.Title)
	if title == "" {
		title = strings.TrimSuffix(p.FileName, filepath.Ext(p.FileName))
	}

	metadata := map[string]string{
		MetaPageCount:   strconv.Itoa(len(p.Pages)),
		MetaPageOffsets: strings.Join(offsets, ","),
		MetaFileName:    p.FileName,
	}
	if author := text.NormalizeWhitespace(p.Author); author != "" {
		metadata[MetaAuthor] = author
	}
	numerics := map[string]float64{MetaPageCount: float64(len(p.Pages))}

	key := p.RelPath
	if key == "" {
		key = p.FileName
	}
	if key != p.FileName {
		metadata[MetaPath] = key
	}
	return newDocument(derivedID(document.KindPDF, key, ""), document.KindPDF, title, body, metadata, numerics)
}

func newDocument(
	id string, kind document.SourceKind, title, body string,
	metadata map[string]string, numerics map[string]float64,
) (document.Document, error) {
	doc, err := document.New(id, kind, title, body, metadata, numerics)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return doc, nil
}

// derivedID is stable across content changes of the same source, so
// re-ingestion replaces the previous entry.
func derivedID(kind document.SourceKind, sourceName, discriminator string) string {
	key := string(kind) + ":" + sourceName
	if discriminator != "" {
		key += ":" + discriminator
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:derivedIDLen]
}

// PageOffsets parses the page_offsets metadata of a PDF document.
func PageOffsets(doc *document.Document) []int {
	raw := doc.Metadata()[MetaPageOffsets]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
