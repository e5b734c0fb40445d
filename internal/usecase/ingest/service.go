// Package ingest reads the corpus sources, normalizes them into documents
// and (re)builds the embedding index.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/batch"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/metrics"
	"github.com/kailas-cloud/paperrag/internal/source"
	"github.com/kailas-cloud/paperrag/internal/usecase/index"
)

// Request names the sources of one ingestion run. Empty fields are skipped.
type Request struct {
	CSVPath string
	PDFDir  string
	// Rebuild drops the persisted index instead of upserting into it.
	Rebuild bool
}

// Report is the outcome of an ingestion run.
type Report struct {
	batch.Report
	Handle index.Handle
	Saved  bool
}

// Service runs ingestion.
type Service struct {
	normalizer Normalizer
	indexer    Indexer
	cache      CachePurger
	persist    bool
}

// New creates an ingestion service. With persist set, every successful build
// is written to the snapshot store.
func New(normalizer Normalizer, indexer Indexer, persist bool) *Service {
	return &Service{normalizer: normalizer, indexer: indexer, persist: persist}
}

// WithCache makes rebuilds also drop the embedding cache.
func (s *Service) WithCache(c CachePurger) *Service {
	s.cache = c
	return s
}

// Ingest normalizes every item of the requested sources and upserts the
// valid documents into the index. Items that fail are reported, not fatal;
// a missing source or a failed build is.
func (s *Service) Ingest(ctx context.Context, req Request) (Report, error) {
	if req.CSVPath == "" && req.PDFDir == "" {
		return Report{}, domain.Wrap(ctx, fmt.Errorf("no CSV path or PDF directory given: %w", domain.ErrValidation))
	}
	log := logger.FromContext(ctx)

	var (
		report Report
		raws   []source.Raw
	)
	if req.CSVPath != "" {
		rows, err := source.ReadCSV(req.CSVPath)
		if err != nil {
			return Report{}, domain.Wrap(ctx, fmt.Errorf("read csv: %w", err))
		}
		raws = append(raws, rows...)
	}
	if req.PDFDir != "" {
		pdfs, failed, err := source.ReadPDFDir(ctx, req.PDFDir)
		if err != nil {
			return Report{}, domain.Wrap(ctx, fmt.Errorf("read pdf directory: %w", err))
		}
		for _, r := range failed {
			s.record(ctx, &report, r)
		}
		raws = append(raws, pdfs...)
	}

	docs := make([]document.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := s.normalizer.Normalize(raw)
		if err != nil {
			s.record(ctx, &report, batch.NewSkipped(raw.Source, err))
			continue
		}
		docs = append(docs, doc)
		s.record(ctx, &report, batch.NewOK(raw.Source, doc.ID()))
	}

	if len(docs) == 0 {
		log.Warn("No documents to index",
			zap.Int("skipped", report.Count(batch.StatusSkipped)),
			zap.Int("errors", report.Count(batch.StatusError)),
		)
		return report, nil
	}

	if s.persist {
		if err := s.prepare(ctx, req.Rebuild); err != nil {
			return Report{}, err
		}
	}

	h, err := s.indexer.Build(ctx, docs)
	if err != nil {
		return Report{}, domain.Wrap(ctx, fmt.Errorf("build index: %w", err))
	}
	report.Handle = h

	if s.persist {
		if err := s.indexer.Save(ctx); err != nil {
			return Report{}, domain.Wrap(ctx, fmt.Errorf("persist index: %w", err))
		}
		report.Saved = true
	}

	log.Info("Ingestion finished",
		zap.Int("ok", report.Count(batch.StatusOK)),
		zap.Int("skipped", report.Count(batch.StatusSkipped)),
		zap.Int("errors", report.Count(batch.StatusError)),
		zap.Uint64("generation", h.Generation()),
		zap.Int("entries", h.Len()),
		zap.Bool("saved", report.Saved),
	)
	return report, nil
}

// prepare publishes the persisted generation so Build upserts into it and
// reuses unchanged embeddings. A snapshot from another embedding model is
// replaced wholesale by the next Save. A rebuild starts from an empty index
// and an empty embedding cache.
func (s *Service) prepare(ctx context.Context, rebuild bool) error {
	if rebuild {
		if err := s.indexer.Reset(ctx); err != nil {
			return domain.Wrap(ctx, fmt.Errorf("reset index: %w", err))
		}
		if s.cache == nil {
			return nil
		}
		n, err := s.cache.Purge(ctx)
		if err != nil {
			return domain.Wrap(ctx, fmt.Errorf("purge embedding cache: %w", err))
		}
		logger.FromContext(ctx).Info("Embedding cache purged", zap.Int("keys", n))
		return nil
	}
	_, err := s.indexer.Load(ctx)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return nil
	case errors.Is(err, domain.ErrIndexVersionMismatch):
		logger.FromContext(ctx).Warn("Persisted index was embedded with another model or instruction, rebuilding",
			zap.Error(err))
		return nil
	default:
		return domain.Wrap(ctx, fmt.Errorf("load index: %w", err))
	}
}

func (s *Service) record(ctx context.Context, report *Report, r batch.Result) {
	report.Add(r)
	metrics.IngestItemsTotal.WithLabelValues(string(r.Status())).Inc()
	if r.Status() == batch.StatusOK {
		return
	}
	logger.FromContext(ctx).Warn("Source item not indexed",
		zap.String("source", r.Source()),
		zap.String("status", string(r.Status())),
		zap.Error(r.Err()),
	)
}
