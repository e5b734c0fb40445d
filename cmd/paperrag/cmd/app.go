package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/config"
	"github.com/kailas-cloud/paperrag/internal/db"
	dbBadger "github.com/kailas-cloud/paperrag/internal/db/badger"
	dbRedis "github.com/kailas-cloud/paperrag/internal/db/redis"
	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/metrics"
	"github.com/kailas-cloud/paperrag/internal/repository/embcache"
	snapshotrepo "github.com/kailas-cloud/paperrag/internal/repository/snapshot"
	localEmb "github.com/kailas-cloud/paperrag/internal/transport/local"
	ollamaProv "github.com/kailas-cloud/paperrag/internal/transport/ollama"
	openaiProv "github.com/kailas-cloud/paperrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/paperrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/paperrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/paperrag/internal/usecase/health"
	indexuc "github.com/kailas-cloud/paperrag/internal/usecase/index"
	ingestuc "github.com/kailas-cloud/paperrag/internal/usecase/ingest"
	"github.com/kailas-cloud/paperrag/internal/usecase/normalize"
	rankuc "github.com/kailas-cloud/paperrag/internal/usecase/rank"
	"github.com/kailas-cloud/paperrag/internal/usecase/relevance"
	retrievaluc "github.com/kailas-cloud/paperrag/internal/usecase/retrieval"
)

// app is the composition root shared by the commands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     db.Store
	index     *indexuc.Service
	retrieval *retrievaluc.Service
	answer    *answeruc.Service
	rank      *rankuc.Service
	ingest    *ingestuc.Service
	health    *healthuc.Service
	cache     *embcache.CachedEmbedder // nil when embedding.cache is off
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder, cache, err := buildEmbedder(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	docEmbedder := withInstruction(embedder, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(embedder, cfg.Embedding.QueryInstruction)

	chat, err := buildChat(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	scorer, err := relevance.NewScorer(relevance.Provider(cfg.LLM.Provider), chat)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create scorer: %w", err)
	}
	policy := relevance.NewPolicy(scorer)

	normalizer := normalize.New(normalize.Options{
		TextColumn:  cfg.Ingest.TextColumn,
		TitleColumn: cfg.Ingest.TitleColumn,
		IDColumn:    cfg.Ingest.IDColumn,
	})

	idx := indexuc.New(
		docEmbedder,
		snapshotrepo.New(store, cfg.Storage.KeyPrefix),
		cfg.Storage.IndexName,
		cfg.Ingest.Workers,
		logger.Named("index"),
	)
	retrieval := retrievaluc.New(idx, queryEmbedder, policy, retrievaluc.Config{
		OverFetch:        cfg.Retrieval.OverFetch,
		MaxCandidates:    cfg.Retrieval.MaxCandidates,
		Workers:          cfg.Retrieval.Workers,
		ScorerWeight:     cfg.Retrieval.ScorerWeight,
		SimilarityWeight: cfg.Retrieval.SimilarityWeight,
		Timeout:          time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
	})

	ingest := ingestuc.New(normalizer, idx, true)
	if cache != nil {
		ingest.WithCache(cache)
	}

	var llmChecker healthuc.ProviderChecker
	if hc, ok := chat.(domain.HealthChecker); ok {
		llmChecker = hc
	}

	logger.Debug("Application wired",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("embedding", embedder.Version().String()),
		zap.String("scorer", policy.Primary().Name()),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		index:     idx,
		retrieval: retrieval,
		answer:    answeruc.New(retrieval, policy, cfg.Answer.MaxContextChars),
		rank:      rankuc.New(policy, normalizer, cfg.Data.OutputDir, cfg.Retrieval.Workers),
		ingest:    ingest,
		health:    healthuc.New(store, embedder, llmChecker, idx),
		cache:     cache,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// loadIndex publishes the persisted snapshot. A missing snapshot leaves the
// index empty so queries fail with domain.ErrIndexEmpty.
func (a *app) loadIndex(ctx context.Context) (indexuc.Handle, error) {
	h, err := a.index.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		a.logger.Warn("No index snapshot found, run `paperrag ingest` first",
			zap.String("index", a.cfg.Storage.IndexName))
		return a.index.Current(), nil
	}
	if err != nil {
		return indexuc.Handle{}, domain.Wrap(ctx, err)
	}
	return h, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Storage.Driver {
	case "badger":
		store, err = dbBadger.NewStore(dbBadger.Config{Dir: cfg.Storage.Path, Logger: logger})
	case "memory":
		store, err = dbBadger.NewStore(dbBadger.Config{Logger: logger})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Storage.Addrs,
			Password: cfg.Storage.Password,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	timeout := time.Duration(cfg.Storage.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("storage not ready: %w", err)
	}
	return store, nil
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented.
// The cache layer is returned as well so rebuilds can purge it.
func buildEmbedder(
	cfg config.Config, store db.Store, logger *zap.Logger,
) (*embeddinguc.InstrumentedEmbedder, *embcache.CachedEmbedder, error) {
	ec := cfg.Embedding
	timeout := time.Duration(ec.TimeoutSec) * time.Second

	var base domain.Embedder
	switch ec.Provider {
	case config.ProviderLocal:
		base = localEmb.NewEmbedder(ec.Dimensions)
	case config.ProviderOpenAI:
		base = openaiProv.NewEmbedder(&openaiProv.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    timeout,
			Logger:     logger,
		})
	case config.ProviderOllama:
		base = ollamaProv.NewEmbedder(&ollamaProv.Config{
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    timeout,
			Logger:     logger,
		})
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}

	var cache *embcache.CachedEmbedder
	if ec.Cache {
		cache = embcache.New(base, store, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
		base = cache
	}
	return embeddinguc.NewInstrumentedEmbedder(base, logger), cache, nil
}

// withInstruction is applied outermost so the cache key includes the instruction.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// buildChat creates the language model client for remote scorers; nil for local.
func buildChat(cfg config.Config, logger *zap.Logger) (domain.ChatClient, error) {
	lc := cfg.LLM
	timeout := time.Duration(lc.TimeoutSeconds) * time.Second

	switch lc.Provider {
	case config.ProviderLocal:
		return nil, nil
	case config.ProviderOpenAI:
		return openaiProv.NewChat(&openaiProv.Config{
			APIKey:   lc.APIKey,
			BaseURL:  lc.BaseURL,
			Model:    lc.Model,
			Provider: config.ProviderOpenAI,
			Timeout:  timeout,
			Logger:   logger,
		}, lc.Temperature), nil
	case config.ProviderOllama:
		return ollamaProv.NewChat(&ollamaProv.Config{
			BaseURL:     lc.BaseURL,
			Model:       lc.Model,
			Temperature: lc.Temperature,
			Timeout:     timeout,
			Logger:      logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	}
}
