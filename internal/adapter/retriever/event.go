package retriever

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// downsampleDivisor bounds the payload of large common sets: when at least
// this many frames survive, only len/downsampleDivisor are returned.
const downsampleDivisor = 100

// EventFuser finds frames whose video shows every later event after them.
type EventFuser struct {
	parallelism int
}

func NewEventFuser(parallelism int) *EventFuser {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &EventFuser{parallelism: parallelism}
}

// Search retrieves every event independently with r and fuses the lists.
func (f *EventFuser) Search(ctx context.Context, r port.FrameRetriever, events []string) ([]domain.FrameRecord, error) {
	if len(events) == 0 {
		return nil, domain.ErrNoEvidenceLists
	}

	lists := make([][]domain.Hit, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	for i, event := range events {
		g.Go(func() error {
			frames, err := r.SearchText(gctx, event)
			if err != nil {
				return fmt.Errorf("event %d: %w", i+1, err)
			}
			lists[i] = domain.HitsFromFrames(frames)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	common, err := CommonByVideo(lists)
	if err != nil {
		return nil, err
	}
	return domain.Frames(common), nil
}

// CommonByVideo keeps the frames of the first list for which every other
// list holds a frame of the same video with a strictly greater ordinal.
// Survivors keep first-list order; when len(survivors)/100 is positive only
// that many are returned from the front.
func CommonByVideo(lists [][]domain.Hit) ([]domain.Hit, error) {
	if len(lists) == 0 {
		return nil, domain.ErrNoEvidenceLists
	}

	// Later-frame-exists reduces to comparing against the latest frame each
	// video reaches in each other list.
	latest := make([]map[string]int, len(lists)-1)
	for i, list := range lists[1:] {
		latest[i] = latestOrdinals(list)
	}

	common := make([]domain.Hit, 0)
	for _, item := range lists[0] {
		ordinal, ok := item.Ordinal()
		if !ok {
			continue
		}

		inAll := true
		for _, videos := range latest {
			last, seen := videos[item.VideoID]
			if !seen || last <= ordinal {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, item)
		}
	}

	if n := len(common) / downsampleDivisor; n > 0 {
		return common[:n], nil
	}
	return common, nil
}

// latestOrdinals returns the highest parsable frame ordinal per video.
func latestOrdinals(list []domain.Hit) map[string]int {
	latest := make(map[string]int)
	for _, h := range list {
		ordinal, ok := h.Ordinal()
		if !ok {
			continue
		}
		if cur, seen := latest[h.VideoID]; !seen || ordinal > cur {
			latest[h.VideoID] = ordinal
		}
	}
	return latest
}
