package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"framesearch/internal/adapter/retriever"
	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// BackendSelector routes a backend name to its retriever.
type BackendSelector interface {
	Select(name domain.Backend) (port.FrameRetriever, bool)
}

// RetrieveUseCase validates caller queries and runs them against the
// selected backend.
type RetrieveUseCase struct {
	selector BackendSelector
	events   *retriever.EventFuser
	multi    *retriever.MultiModalFuser
	logger   *slog.Logger
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	selector BackendSelector,
	events *retriever.EventFuser,
	multi *retriever.MultiModalFuser,
	logger *slog.Logger,
) *RetrieveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		selector: selector,
		events:   events,
		multi:    multi,
		logger:   logger,
	}
}

// RetrieveByText returns the frames nearest to a text query.
func (u *RetrieveUseCase) RetrieveByText(ctx context.Context, q domain.TextQuery) (domain.Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return domain.Result{}, domain.Invalid("Query is required")
	}

	r, ok := u.selector.Select(q.Backend)
	if !ok {
		return domain.Unsupported(), nil
	}

	start := time.Now()
	frames, err := r.SearchText(ctx, q.Text)
	if err != nil {
		return domain.Result{}, err
	}
	u.logRetrieval("text", q.Backend, start, len(frames))

	return okResult(frames), nil
}

// RetrieveByImage returns the frames nearest to an example image.
func (u *RetrieveUseCase) RetrieveByImage(ctx context.Context, q domain.ImageQuery) (domain.Result, error) {
	if len(q.Image) == 0 {
		return domain.Result{}, domain.Invalid("Image is required")
	}

	r, ok := u.selector.Select(q.Backend)
	if !ok {
		return domain.Unsupported(), nil
	}

	start := time.Now()
	frames, err := r.SearchImage(ctx, q.Image)
	if err != nil {
		return domain.Result{}, err
	}
	u.logRetrieval("image", q.Backend, start, len(frames))

	return okResult(frames), nil
}

// RetrieveByEventSequence returns frames from videos where every event
// appears after the first one. A single event is a plain text retrieval.
func (u *RetrieveUseCase) RetrieveByEventSequence(ctx context.Context, q domain.EventSequenceQuery) (domain.Result, error) {
	events := make([]string, 0, len(q.Events))
	for _, e := range q.Events {
		if strings.TrimSpace(e) != "" {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return domain.Result{}, domain.Invalid("List of events is required")
	}

	r, ok := u.selector.Select(q.Backend)
	if !ok {
		return domain.Unsupported(), nil
	}

	start := time.Now()
	var (
		frames []domain.FrameRecord
		err    error
	)
	if len(events) == 1 {
		frames, err = r.SearchText(ctx, events[0])
	} else {
		frames, err = u.events.Search(ctx, r, events)
	}
	if err != nil {
		return domain.Result{}, err
	}
	u.logRetrieval("events", q.Backend, start, len(frames), "events", len(events))

	return okResult(frames), nil
}

// RetrieveMultiModal fuses semantic, OCR and ASR evidence.
func (u *RetrieveUseCase) RetrieveMultiModal(ctx context.Context, q domain.MultiModalQuery) (domain.Result, error) {
	if err := validateMultiModal(q); err != nil {
		return domain.Result{}, err
	}

	r, ok := u.selector.Select(q.Backend)
	if !ok {
		return domain.Unsupported(), nil
	}

	q.OCR = normalizeHits(q.OCR)
	q.ASR = normalizeHits(q.ASR)

	start := time.Now()
	res, err := u.multi.Search(ctx, r, q)
	if err != nil {
		return domain.Result{}, err
	}
	u.logRetrieval("multimodal", q.Backend, start, len(res.Frames), "status", string(res.Status))

	return res, nil
}

func validateMultiModal(q domain.MultiModalQuery) error {
	supplied := make(map[domain.Source]bool, 3)
	if strings.TrimSpace(q.Text) != "" {
		supplied[domain.SourceClip] = true
	}
	if len(q.OCR) > 0 {
		supplied[domain.SourceOCR] = true
	}
	if len(q.ASR) > 0 {
		supplied[domain.SourceASR] = true
	}

	if len(supplied) == 0 {
		return domain.Invalid("there is no features")
	}
	if len(supplied) < 2 {
		return domain.Invalid("at least 2 in 3 fields are required")
	}

	if len(q.Priority) == 0 {
		return domain.Invalid("priority is required")
	}
	seen := make(map[domain.Source]bool, len(q.Priority))
	for _, tag := range q.Priority {
		if !tag.Known() {
			return domain.Invalid("unknown priority %q", tag)
		}
		if seen[tag] {
			return domain.Invalid("duplicate priority %q", tag)
		}
		seen[tag] = true
	}
	for _, src := range []domain.Source{domain.SourceClip, domain.SourceOCR, domain.SourceASR} {
		if supplied[src] && !seen[src] {
			return domain.Invalid("priority must include %q", src)
		}
	}
	return nil
}

// normalizeHits gives extensionless frame ids the corpus file extension so
// they compare equal to semantic results.
func normalizeHits(hits []domain.Hit) []domain.Hit {
	if len(hits) == 0 {
		return hits
	}
	out := make([]domain.Hit, len(hits))
	for i, h := range hits {
		out[i] = h.WithNormalizedFrameID()
	}
	return out
}

func (u *RetrieveUseCase) logRetrieval(kind string, backend domain.Backend, start time.Time, frames int, extra ...any) {
	args := append([]any{
		"kind", kind,
		"backend", string(backend),
		"frames", frames,
		"elapsed", time.Since(start),
	}, extra...)
	u.logger.Info("retrieval", args...)
}

func okResult(frames []domain.FrameRecord) domain.Result {
	if frames == nil {
		frames = []domain.FrameRecord{}
	}
	return domain.Result{Status: domain.StatusOK, Frames: frames}
}
