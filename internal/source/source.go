// Package source reads raw corpus items from disk: CSV rows and PDF files.
// It performs I/O only; turning items into documents is the normalizer's job.
package source

import "github.com/kailas-cloud/paperrag/internal/domain/document"

// Raw is one unnormalized source item.
type Raw struct {
	Kind    document.SourceKind
	Source  string // locator used in reports, e.g. "papers.csv:3"
	Payload Payload
}

// Payload is the kind-specific content of a Raw item: *PDF or *Row.
type Payload interface {
	payloadKind() document.SourceKind
}

// PDF is the extracted content of one PDF file.
type PDF struct {
	FileName string
	// RelPath is the slash-separated path below the ingested directory,
	// the file name for a file read on its own. It identifies the source.
	RelPath  string
	Title    string
	Author   string
	Pages    []string
}

func (*PDF) payloadKind() document.SourceKind { return document.KindPDF }

// Row is one CSV data row keyed by lowercase, trimmed header names.
type Row struct {
	File    string
	Line    int
	Columns map[string]string
}

func (*Row) payloadKind() document.SourceKind { return document.KindCSVRow }

// KindOf returns the source kind a payload belongs to, "" for nil.
func KindOf(p Payload) document.SourceKind {
	if p == nil {
		return ""
	}
	return p.payloadKind()
}
