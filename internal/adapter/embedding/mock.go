package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"framesearch/internal/domain"
)

// MockEmbedder derives deterministic unit vectors from a hash of the input.
// Identical inputs always embed to identical vectors.
type MockEmbedder struct {
	dimension int
	model     string
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension, model: "mock"}
}

func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrEncoding)
	}
	return e.vector(ctx, []byte("text:"+text))
}

func (e *MockEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if err := CheckImage(image); err != nil {
		return nil, err
	}
	return e.vector(ctx, append([]byte("image:"), image...))
}

func (e *MockEmbedder) vector(ctx context.Context, seed []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimension)
	block := sha256.Sum256(seed)
	for i := range vec {
		if i > 0 && i%8 == 0 {
			block = sha256.Sum256(block[:])
		}
		word := binary.LittleEndian.Uint32(block[(i%8)*4:])
		vec[i] = float32(word)/float32(1<<32) - 0.5
	}
	return Normalize(vec)
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return e.model
}
