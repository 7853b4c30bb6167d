package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"framesearch/internal/domain"
)

// Normalize scales v to unit L2 norm in place, so inner product on the
// index side equals cosine similarity.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("%w: cannot normalize a zero or non-finite vector", domain.ErrEncoding)
	}

	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

// CheckImage rejects payloads that are not a decodable image.
func CheckImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty image", domain.ErrEncoding)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: invalid image format: %w", domain.ErrEncoding, err)
	}
	return nil
}
