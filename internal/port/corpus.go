package port

import "framesearch/internal/domain"

// CorpusIndex maps dense vector-index keys to frame records. It is built once
// at start-up and only read afterwards.
type CorpusIndex interface {
	// Resolve returns the frame for key, or false when the key is unknown.
	Resolve(key int64) (domain.FrameRecord, bool)

	// Len returns the number of mapped keys.
	Len() int
}
