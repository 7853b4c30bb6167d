package memstore

import (
	"framesearch/internal/domain"
)

// Corpus is an immutable in-memory CorpusIndex. It is safe for concurrent
// reads because nothing mutates it after construction.
type Corpus struct {
	frames map[int64]domain.FrameRecord
}

// NewCorpus copies frames into a new corpus.
func NewCorpus(frames map[int64]domain.FrameRecord) *Corpus {
	copied := make(map[int64]domain.FrameRecord, len(frames))
	for k, v := range frames {
		copied[k] = v
	}
	return &Corpus{frames: copied}
}

// FrameSource is anything that can enumerate mapping entries, such as the
// bolt store.
type FrameSource interface {
	ForEachFrame(fn func(key int64, frame domain.FrameRecord) error) error
}

// LoadCorpus reads every entry of src into memory.
func LoadCorpus(src FrameSource) (*Corpus, error) {
	frames := make(map[int64]domain.FrameRecord)
	err := src.ForEachFrame(func(key int64, frame domain.FrameRecord) error {
		frames[key] = frame
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Corpus{frames: frames}, nil
}

func (c *Corpus) Resolve(key int64) (domain.FrameRecord, bool) {
	frame, ok := c.frames[key]
	return frame, ok
}

func (c *Corpus) Len() int {
	return len(c.frames)
}
