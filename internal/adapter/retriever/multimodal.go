package retriever

import (
	"context"
	"strings"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// MultiModalFuser merges semantic, OCR and ASR evidence under a caller
// priority order.
type MultiModalFuser struct{}

func NewMultiModalFuser() *MultiModalFuser {
	return &MultiModalFuser{}
}

// Search picks the fusion policy from the channels present in q:
//   - no text, OCR and ASR: exact intersection of the two hit lists;
//   - text plus OCR and/or ASR: CommonByVideo over the supplied lists taken
//     in priority order, with the clip list retrieved through r.
//
// Any other combination yields StatusInsufficientEvidence.
func (f *MultiModalFuser) Search(ctx context.Context, r port.FrameRetriever, q domain.MultiModalQuery) (domain.Result, error) {
	hasText := strings.TrimSpace(q.Text) != ""
	hasOCR := len(q.OCR) > 0
	hasASR := len(q.ASR) > 0

	channels := make(map[domain.Source][]domain.Hit, 3)
	if hasOCR {
		channels[domain.SourceOCR] = q.OCR
	}
	if hasASR {
		channels[domain.SourceASR] = q.ASR
	}

	var pool []domain.Hit
	switch {
	case !hasText && hasOCR && hasASR:
		pool = IntersectHits(q.OCR, q.ASR)

	case hasText && (hasOCR || hasASR):
		frames, err := r.SearchText(ctx, q.Text)
		if err != nil {
			return domain.Result{}, err
		}
		channels[domain.SourceClip] = domain.HitsFromFrames(frames)

		lists := make([][]domain.Hit, 0, len(channels))
		for _, tag := range q.Priority {
			if list, ok := channels[tag]; ok {
				lists = append(lists, list)
			}
		}

		common, err := CommonByVideo(lists)
		if err != nil {
			return domain.Result{}, err
		}
		pool = common

	default:
		return domain.Result{Status: domain.StatusInsufficientEvidence, Frames: []domain.FrameRecord{}}, nil
	}

	ordered := Prioritize(pool, q.Priority, channels)
	return domain.Result{Status: domain.StatusOK, Frames: domain.Frames(ordered)}, nil
}

// IntersectHits returns the hits of a that also occur in b, comparing every
// field. Output follows a's order without duplicates.
func IntersectHits(a, b []domain.Hit) []domain.Hit {
	inB := make(map[string]struct{}, len(b))
	for _, h := range b {
		inB[h.Key()] = struct{}{}
	}

	seen := make(map[string]struct{}, len(a))
	out := make([]domain.Hit, 0)
	for _, h := range a {
		key := h.Key()
		if _, ok := inB[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Prioritize regroups pool by source: for each tag in priority, in order,
// the not yet emitted candidates that belong to that tag's list are
// appended. Tags without a channel contribute nothing; clip membership is
// the identity. Every candidate is emitted exactly once, and candidates no
// listed channel claims keep their relative order at the end.
func Prioritize(pool []domain.Hit, priority []domain.Source, channels map[domain.Source][]domain.Hit) []domain.Hit {
	emitted := make([]bool, len(pool))
	out := make([]domain.Hit, 0, len(pool))

	for _, tag := range priority {
		list, ok := channels[tag]
		if !ok {
			continue
		}

		member := func(domain.Hit) bool { return true }
		if tag != domain.SourceClip {
			keys := make(map[string]struct{}, len(list))
			for _, h := range list {
				keys[h.Key()] = struct{}{}
			}
			member = func(h domain.Hit) bool {
				_, ok := keys[h.Key()]
				return ok
			}
		}

		for i, h := range pool {
			if !emitted[i] && member(h) {
				emitted[i] = true
				out = append(out, h)
			}
		}
	}

	for i, h := range pool {
		if !emitted[i] {
			out = append(out, h)
		}
	}
	return out
}
