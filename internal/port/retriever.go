package port

import (
	"context"

	"framesearch/internal/domain"
)

// FrameRetriever resolves one text or image query into ranked frames using a
// single backend.
type FrameRetriever interface {
	SearchText(ctx context.Context, text string) ([]domain.FrameRecord, error)

	SearchImage(ctx context.Context, image []byte) ([]domain.FrameRecord, error)
}
