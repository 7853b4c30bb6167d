package usecase

import (
	"context"
	"errors"
	"testing"

	"framesearch/internal/adapter/retriever"
	"framesearch/internal/domain"
	"framesearch/internal/logging"
	"framesearch/internal/port"
)

type fakeRetriever struct {
	text  map[string][]domain.FrameRecord
	image []domain.FrameRecord
	err   error
	calls int
}

func (r *fakeRetriever) SearchText(ctx context.Context, text string) ([]domain.FrameRecord, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.text[text], nil
}

func (r *fakeRetriever) SearchImage(ctx context.Context, image []byte) ([]domain.FrameRecord, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.image, nil
}

func newTestUseCase(r *fakeRetriever) *RetrieveUseCase {
	selector := retriever.NewSelector(map[domain.Backend]port.FrameRetriever{
		domain.BackendAppleCLIP: r,
	})
	return NewRetrieveUseCase(selector, retriever.NewEventFuser(2), retriever.NewMultiModalFuser(), logging.Discard())
}

func fr(video, id string) domain.FrameRecord {
	return domain.FrameRecord{VideoID: video, FrameID: id}
}

func hit(video, id string) domain.Hit {
	return domain.Hit{FrameRecord: fr(video, id)}
}

func TestRetrieveByText(t *testing.T) {
	r := &fakeRetriever{text: map[string][]domain.FrameRecord{
		"a dog": {fr("v1", "1.jpg"), fr("v2", "9.jpg")},
	}}
	u := newTestUseCase(r)

	res, err := u.RetrieveByText(context.Background(), domain.TextQuery{Backend: domain.BackendAppleCLIP, Text: "a dog"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusOK || len(res.Frames) != 2 {
		t.Errorf("expected 2 frames with ok status, got %+v", res)
	}

	res, err = u.RetrieveByText(context.Background(), domain.TextQuery{Backend: domain.BackendAppleCLIP, Text: "nothing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusOK || res.Frames == nil || len(res.Frames) != 0 {
		t.Errorf("expected empty non-nil frames, got %+v", res)
	}
}

func TestRetrieve_UnsupportedBackend(t *testing.T) {
	r := &fakeRetriever{}
	u := newTestUseCase(r)
	ctx := context.Background()

	results := []func() (domain.Result, error){
		func() (domain.Result, error) {
			return u.RetrieveByText(ctx, domain.TextQuery{Backend: "dino", Text: "x"})
		},
		func() (domain.Result, error) {
			return u.RetrieveByImage(ctx, domain.ImageQuery{Backend: domain.BackendLaionCLIP, Image: []byte{1}})
		},
		func() (domain.Result, error) {
			return u.RetrieveByEventSequence(ctx, domain.EventSequenceQuery{Backend: "dino", Events: []string{"a", "b"}})
		},
		func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{
				Backend:  "dino",
				OCR:      []domain.Hit{hit("v1", "1.jpg")},
				ASR:      []domain.Hit{hit("v1", "1.jpg")},
				Priority: []domain.Source{domain.SourceOCR, domain.SourceASR},
			})
		},
	}

	for i, call := range results {
		res, err := call()
		if err != nil {
			t.Errorf("call %d: unexpected error: %v", i, err)
			continue
		}
		if res.Status != domain.StatusUnsupportedBackend {
			t.Errorf("call %d: expected unsupported_backend, got %s", i, res.Status)
		}
	}
	if r.calls != 0 {
		t.Errorf("expected no retrieval for unsupported backend, got %d", r.calls)
	}
}

func TestRetrieve_Validation(t *testing.T) {
	u := newTestUseCase(&fakeRetriever{})
	ctx := context.Background()
	apple := domain.BackendAppleCLIP
	ocr := []domain.Hit{hit("v1", "1.jpg")}

	tests := []struct {
		name     string
		call     func() (domain.Result, error)
		expected string
	}{
		{"blank text", func() (domain.Result, error) {
			return u.RetrieveByText(ctx, domain.TextQuery{Backend: apple, Text: "  "})
		}, "Query is required"},
		{"empty image", func() (domain.Result, error) {
			return u.RetrieveByImage(ctx, domain.ImageQuery{Backend: apple})
		}, "Image is required"},
		{"no events", func() (domain.Result, error) {
			return u.RetrieveByEventSequence(ctx, domain.EventSequenceQuery{Backend: apple, Events: []string{"", " "}})
		}, "List of events is required"},
		{"no channels", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple})
		}, "there is no features"},
		{"one channel", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple, OCR: ocr, Priority: []domain.Source{domain.SourceOCR}})
		}, "at least 2 in 3 fields are required"},
		{"missing priority", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple, Text: "x", OCR: ocr})
		}, "priority is required"},
		{"priority misses channel", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple, Text: "x", OCR: ocr, Priority: []domain.Source{domain.SourceOCR}})
		}, `priority must include "clip"`},
		{"duplicate priority", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple, Text: "x", OCR: ocr, Priority: []domain.Source{"ocr", "clip", "ocr"}})
		}, `duplicate priority "ocr"`},
		{"unknown priority", func() (domain.Result, error) {
			return u.RetrieveMultiModal(ctx, domain.MultiModalQuery{Backend: apple, Text: "x", OCR: ocr, Priority: []domain.Source{"ocr", "clip", "faces"}})
		}, `unknown priority "faces"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			if !domain.IsClientFault(err) {
				t.Fatalf("expected client fault, got %v", err)
			}
			if err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, err.Error())
			}
		})
	}
}

func TestRetrieveByEventSequence(t *testing.T) {
	r := &fakeRetriever{text: map[string][]domain.FrameRecord{
		"person enters room": {fr("v1", "00010.jpg"), fr("v2", "00010.jpg")},
		"person sits down":   {fr("v1", "00050.jpg"), fr("v2", "00005.jpg")},
	}}
	u := newTestUseCase(r)

	res, err := u.RetrieveByEventSequence(context.Background(), domain.EventSequenceQuery{
		Backend: domain.BackendAppleCLIP,
		Events:  []string{"person enters room", "person sits down"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Frames) != 1 || res.Frames[0] != fr("v1", "00010.jpg") {
		t.Errorf("expected [v1/00010.jpg], got %v", res.Frames)
	}
}

func TestRetrieveByEventSequence_SingleEventIsPlainRetrieval(t *testing.T) {
	frames := make([]domain.FrameRecord, 250)
	for i := range frames {
		frames[i] = fr("v1", "1.jpg")
	}
	r := &fakeRetriever{text: map[string][]domain.FrameRecord{"goal": frames}}
	u := newTestUseCase(r)

	res, err := u.RetrieveByEventSequence(context.Background(), domain.EventSequenceQuery{
		Backend: domain.BackendAppleCLIP,
		Events:  []string{"goal"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Frames) != 250 {
		t.Errorf("expected all 250 frames without downsampling, got %d", len(res.Frames))
	}
	if r.calls != 1 {
		t.Errorf("expected 1 retrieval, got %d", r.calls)
	}
}

func TestRetrieveMultiModal_NormalizesFrameIDs(t *testing.T) {
	u := newTestUseCase(&fakeRetriever{})

	res, err := u.RetrieveMultiModal(context.Background(), domain.MultiModalQuery{
		Backend:  domain.BackendAppleCLIP,
		OCR:      []domain.Hit{hit("v1", "00042"), hit("v2", "7")},
		ASR:      []domain.Hit{hit("v1", "00042.jpg")},
		Priority: []domain.Source{domain.SourceASR, domain.SourceOCR},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Frames) != 1 || res.Frames[0] != fr("v1", "00042.jpg") {
		t.Errorf("expected [v1/00042.jpg], got %v", res.Frames)
	}
}

func TestRetrieve_BackendErrorsPropagate(t *testing.T) {
	u := newTestUseCase(&fakeRetriever{err: domain.ErrIndexUnavailable})

	_, err := u.RetrieveByText(context.Background(), domain.TextQuery{Backend: domain.BackendAppleCLIP, Text: "x"})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
	if domain.IsClientFault(err) {
		t.Error("expected server fault")
	}
}
