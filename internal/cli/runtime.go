package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"framesearch/config"
	"framesearch/internal/adapter/cache"
	"framesearch/internal/adapter/embedding"
	"framesearch/internal/adapter/memstore"
	"framesearch/internal/adapter/retriever"
	"framesearch/internal/adapter/store"
	"framesearch/internal/domain"
	"framesearch/internal/port"
	"framesearch/internal/usecase"
)

// runtime is everything a retrieval needs, built once at start-up and
// read-only afterwards.
type runtime struct {
	store    *store.BoltStore
	corpus   *memstore.Corpus
	selector *retriever.Selector
	retrieve *usecase.RetrieveUseCase
	closers  []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (*runtime, error) {
	dbPath := cfg.DBPath(dir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no corpus found at %s. Run 'framesearch load' first", dbPath)
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	rt := &runtime{store: st}
	rt.closers = append(rt.closers, func() { st.Close() })

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		logger.Warn("corpus does not match configuration, reload with 'framesearch load --reset'",
			"reason", migration.Reason)
	}

	rt.corpus, err = memstore.LoadCorpus(st)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load corpus mapping: %w", err)
	}
	logger.Info("corpus loaded", "frames", rt.corpus.Len())

	retrievers := make(map[domain.Backend]port.FrameRetriever)
	for name, bc := range cfg.Backends {
		backend := domain.Backend(name)
		if !backend.Known() {
			logger.Warn("ignoring unknown backend in config", "backend", name)
			continue
		}

		r, err := rt.buildRetriever(ctx, cfg, backend, bc, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		retrievers[backend] = r
	}

	rt.selector = retriever.NewSelector(retrievers)
	rt.retrieve = usecase.NewRetrieveUseCase(
		rt.selector,
		retriever.NewEventFuser(cfg.Retrieve.Parallelism),
		retriever.NewMultiModalFuser(),
		logger,
	)
	return rt, nil
}

func (rt *runtime) buildRetriever(ctx context.Context, cfg *config.Config, backend domain.Backend, bc config.BackendConfig, logger *slog.Logger) (port.FrameRetriever, error) {
	embedder, err := newEmbedder(bc)
	if err != nil {
		return nil, err
	}

	index, err := rt.openIndex(ctx, backend, bc)
	if err != nil {
		return nil, err
	}

	var r port.FrameRetriever = retriever.NewClipRetriever(backend, embedder, index, rt.corpus, cfg.Retrieve.TopK, logger)
	if cfg.Retrieve.CacheSize > 0 {
		r = cache.NewCachedRetriever(r, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL.Std()))
	}
	return r, nil
}

// openIndex opens the nearest-neighbour index configured for backend.
func (rt *runtime) openIndex(ctx context.Context, backend domain.Backend, bc config.BackendConfig) (port.VectorIndex, error) {
	switch bc.Index.Provider {
	case "pgvector":
		pg, err := store.NewPgVectorIndex(ctx, bc.Index.DSN, bc.Index.Table)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pg.Close)
		return pg, nil
	default:
		return store.NewBoltVectorStore(rt.store.DB(), backend, bc.Dimension)
	}
}

func newEmbedder(bc config.BackendConfig) (port.Embedder, error) {
	switch bc.Provider {
	case "mock":
		return embedding.NewMockEmbedder(bc.Dimension), nil
	case "http":
		e, err := embedding.NewCLIPEmbedder(bc.BaseURL, bc.Model, bc.APIKeyEnv, bc.Dimension, bc.Timeout.Std())
		if err != nil {
			return nil, err
		}
		return e.WithRateLimit(bc.RateLimit), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", bc.Provider)
	}
}
