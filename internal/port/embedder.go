package port

import "context"

// Embedder turns text or images into L2-normalised vectors for one backend.
type Embedder interface {
	// EmbedText encodes a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage encodes a raw image (JPEG, PNG, ...).
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is a nearest-neighbour index over corpus keys.
type VectorIndex interface {
	// Search returns up to k corpus keys, nearest first.
	Search(ctx context.Context, query []float32, k int) ([]int64, error)

	// Count returns the number of indexed vectors.
	Count(ctx context.Context) (int, error)
}

// VectorItem is one vector keyed by its corpus index.
type VectorItem struct {
	Key    int64     `json:"indice"`
	Vector []float32 `json:"vector"`
}
