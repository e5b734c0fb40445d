package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/batch"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

var disableConfigDir sync.Once

// ReadPDF extracts per-page text and the info-dictionary title of one PDF file.
func ReadPDF(path string) (Raw, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Raw{}, fmt.Errorf("pdf file %s: %w", path, domain.ErrNotFound)
		}
		return Raw{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pdfCtx, err := api.ReadContext(f, model.NewDefaultConfiguration())
	if err != nil {
		return Raw{}, fmt.Errorf("read pdf context: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return Raw{}, fmt.Errorf("validate pdf: %w", err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for nr := 1; nr <= pdfCtx.PageCount; nr++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, nr)
		if err != nil {
			return Raw{}, fmt.Errorf("extract page %d: %w", nr, err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return Raw{}, fmt.Errorf("read page %d: %w", nr, err)
		}
		pages = append(pages, ContentText(content))
	}

	name := filepath.Base(path)
	return Raw{
		Kind:   document.KindPDF,
		Source: path,
		Payload: &PDF{
			FileName: name,
			RelPath:  name,
			Title:    strings.TrimSpace(pdfCtx.Title),
			Author:   strings.TrimSpace(pdfCtx.Author),
			Pages:    pages,
		},
	}, nil
}

// ReadPDFDir reads every *.pdf below dir in lexical path order. Files that
// cannot be read are reported as error results instead of failing the walk.
// A missing directory wraps domain.ErrNotFound.
func ReadPDFDir(ctx context.Context, dir string) ([]Raw, []batch.Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("pdf directory %s: %w", dir, domain.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("stat pdf directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory: %w", dir, domain.ErrNotFound)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk pdf directory: %w", err)
	}
	sort.Strings(paths)

	var items []Raw
	var failures []batch.Result
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("read pdf directory: %w", err)
		}
		raw, err := ReadPDF(p)
		if err != nil {
			failures = append(failures, batch.NewError(p, err))
			continue
		}
		if rel, err := filepath.Rel(dir, p); err == nil {
			raw.Payload.(*PDF).RelPath = filepath.ToSlash(rel)
		}
		items = append(items, raw)
	}
	return items, failures, nil
}
