package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// ClipRetriever embeds a query with one backend, searches that backend's
// index and maps the keys to frames, nearest first.
type ClipRetriever struct {
	backend  domain.Backend
	embedder port.Embedder
	index    port.VectorIndex
	corpus   port.CorpusIndex
	topK     int
	logger   *slog.Logger
}

func NewClipRetriever(
	backend domain.Backend,
	embedder port.Embedder,
	index port.VectorIndex,
	corpus port.CorpusIndex,
	topK int,
	logger *slog.Logger,
) *ClipRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipRetriever{
		backend:  backend,
		embedder: embedder,
		index:    index,
		corpus:   corpus,
		topK:     topK,
		logger:   logger.With("backend", string(backend)),
	}
}

func (r *ClipRetriever) SearchText(ctx context.Context, text string) ([]domain.FrameRecord, error) {
	vec, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text with %s: %w", r.backend, classify(err, domain.ErrEncoding))
	}
	return r.search(ctx, vec)
}

func (r *ClipRetriever) SearchImage(ctx context.Context, image []byte) ([]domain.FrameRecord, error) {
	vec, err := r.embedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed image with %s: %w", r.backend, classify(err, domain.ErrEncoding))
	}
	return r.search(ctx, vec)
}

func (r *ClipRetriever) search(ctx context.Context, vec []float32) ([]domain.FrameRecord, error) {
	start := time.Now()

	keys, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search %s index: %w", r.backend, classify(err, domain.ErrIndexUnavailable))
	}

	frames := r.resolve(keys)

	r.logger.Debug("index search",
		"keys", len(keys),
		"frames", len(frames),
		"elapsed", time.Since(start))

	return frames, nil
}

// resolve maps keys through the corpus, dropping keys it does not know.
func (r *ClipRetriever) resolve(keys []int64) []domain.FrameRecord {
	frames := make([]domain.FrameRecord, 0, len(keys))
	for _, key := range keys {
		frame, ok := r.corpus.Resolve(key)
		if !ok {
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

// classify tags err with kind unless it already carries it or is a
// cancellation.
func classify(err, kind error) error {
	if errors.Is(err, kind) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
