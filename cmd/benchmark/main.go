package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"framesearch/config"
	"framesearch/internal/adapter/embedding"
	"framesearch/internal/adapter/memstore"
	"framesearch/internal/adapter/retriever"
	"framesearch/internal/adapter/store"
	"framesearch/internal/domain"
	"framesearch/internal/logging"
	"framesearch/internal/port"
)

func main() {
	dataDir := flag.String("dir", ".", "Path to data directory")
	query := flag.String("q", "", "Text query to time")
	runs := flag.Int("n", 5, "Runs per backend")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -q \"query\" [-n 5]")
		fmt.Println("\nTimes a text retrieval against every configured backend and reports")
		fmt.Println("latency and the number of frames returned.")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(cfg.DBPath(*dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening corpus: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	corpus, err := memstore.LoadCorpus(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Frames in corpus: %d\n", corpus.Len())
	fmt.Printf("Query: %q, top-k %d, %d runs\n\n", *query, cfg.Retrieve.TopK, *runs)

	ctx := context.Background()
	for _, backend := range domain.Backends() {
		bc, ok := cfg.Backends[string(backend)]
		if !ok {
			continue
		}

		r, err := setupRetriever(ctx, st, corpus, cfg, backend, bc)
		if err != nil {
			fmt.Printf("%-12s unavailable: %v\n", backend, err)
			continue
		}

		latencies := make([]time.Duration, 0, *runs)
		var frames int
		for i := 0; i < *runs; i++ {
			start := time.Now()
			res, err := r.SearchText(ctx, *query)
			if err != nil {
				fmt.Printf("%-12s failed: %v\n", backend, err)
				break
			}
			latencies = append(latencies, time.Since(start))
			frames = len(res)
		}
		if len(latencies) == 0 {
			continue
		}

		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("%-12s frames=%-5d min=%-10s median=%-10s max=%s\n",
			backend, frames,
			latencies[0].Round(time.Microsecond),
			latencies[len(latencies)/2].Round(time.Microsecond),
			latencies[len(latencies)-1].Round(time.Microsecond))
	}
}

func setupRetriever(ctx context.Context, st *store.BoltStore, corpus *memstore.Corpus, cfg *config.Config, backend domain.Backend, bc config.BackendConfig) (port.FrameRetriever, error) {
	var embedder port.Embedder
	switch bc.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(bc.Dimension)
	case "http":
		e, err := embedding.NewCLIPEmbedder(bc.BaseURL, bc.Model, bc.APIKeyEnv, bc.Dimension, bc.Timeout.Std())
		if err != nil {
			return nil, err
		}
		embedder = e.WithRateLimit(bc.RateLimit)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", bc.Provider)
	}

	var index port.VectorIndex
	switch bc.Index.Provider {
	case "pgvector":
		pg, err := store.NewPgVectorIndex(ctx, bc.Index.DSN, bc.Index.Table)
		if err != nil {
			return nil, err
		}
		index = pg
	default:
		vs, err := store.NewBoltVectorStore(st.DB(), backend, bc.Dimension)
		if err != nil {
			return nil, err
		}
		index = vs
	}

	return retriever.NewClipRetriever(backend, embedder, index, corpus, cfg.Retrieve.TopK, logging.Discard()), nil
}
