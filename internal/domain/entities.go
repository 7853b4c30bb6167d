package domain

// Backend names one embedding model + nearest-neighbour index pair.
type Backend string

const (
	BackendAppleCLIP Backend = "apple_clip"
	BackendLaionCLIP Backend = "laion_clip"
)

// Backends returns the closed set of supported backends.
func Backends() []Backend {
	return []Backend{BackendAppleCLIP, BackendLaionCLIP}
}

// Known reports whether b is one of the supported backends.
func (b Backend) Known() bool {
	for _, known := range Backends() {
		if b == known {
			return true
		}
	}
	return false
}

// Source tags the evidence channel a list came from.
type Source string

const (
	SourceClip Source = "clip"
	SourceOCR  Source = "ocr"
	SourceASR  Source = "asr"
)

// Known reports whether s is a recognised evidence channel.
func (s Source) Known() bool {
	return s == SourceClip || s == SourceOCR || s == SourceASR
}

// FrameRecord identifies one frame of one video.
type FrameRecord struct {
	VideoID string `json:"video_id"`
	FrameID string `json:"frame_id"`
}

// Ordinal returns the numeric position of the frame within its video.
func (f FrameRecord) Ordinal() (int, bool) {
	return FrameOrdinal(f.FrameID)
}

// EvidenceList is one channel's hits. Order is a ranking only for clip lists.
type EvidenceList struct {
	Source Source
	Hits   []Hit
}

type TextQuery struct {
	Backend Backend
	Text    string
}

type ImageQuery struct {
	Backend Backend
	Image   []byte
}

type EventSequenceQuery struct {
	Backend Backend
	Events  []string
}

type MultiModalQuery struct {
	Backend  Backend
	Text     string
	OCR      []Hit
	ASR      []Hit
	Priority []Source
}

// Status distinguishes expected empty outcomes from a normal result.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusUnsupportedBackend   Status = "unsupported_backend"
	StatusInsufficientEvidence Status = "insufficient_evidence"
)

// Result is what every retrieval entry point returns for expected outcomes.
type Result struct {
	Status Status
	Frames []FrameRecord
}

// Unsupported builds the result returned for an unknown backend.
func Unsupported() Result {
	return Result{Status: StatusUnsupportedBackend}
}

// Frames strips hit attributes, keeping order.
func Frames(hits []Hit) []FrameRecord {
	frames := make([]FrameRecord, 0, len(hits))
	for _, h := range hits {
		frames = append(frames, h.FrameRecord)
	}
	return frames
}

// HitsFromFrames wraps frame records as attribute-free hits.
func HitsFromFrames(frames []FrameRecord) []Hit {
	hits := make([]Hit, 0, len(frames))
	for _, f := range frames {
		hits = append(hits, Hit{FrameRecord: f})
	}
	return hits
}
