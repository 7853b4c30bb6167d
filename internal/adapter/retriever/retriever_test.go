package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func (e *stubEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0, 1}, nil
}

func (e *stubEmbedder) Dimension() int    { return 2 }
func (e *stubEmbedder) ModelName() string { return "stub" }

type stubIndex struct {
	keys []int64
	err  error
}

func (i *stubIndex) Search(ctx context.Context, query []float32, k int) ([]int64, error) {
	if i.err != nil {
		return nil, i.err
	}
	if k < len(i.keys) {
		return i.keys[:k], nil
	}
	return i.keys, nil
}

func (i *stubIndex) Count(ctx context.Context) (int, error) { return len(i.keys), nil }

type mapCorpus map[int64]domain.FrameRecord

func (c mapCorpus) Resolve(key int64) (domain.FrameRecord, bool) {
	f, ok := c[key]
	return f, ok
}

func (c mapCorpus) Len() int { return len(c) }

// scriptedRetriever answers SearchText from a fixed table.
type scriptedRetriever struct {
	mu      sync.Mutex
	results map[string][]domain.FrameRecord
	errs    map[string]error
	calls   []string
}

func (r *scriptedRetriever) SearchText(ctx context.Context, text string) ([]domain.FrameRecord, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	r.mu.Unlock()
	if err := r.errs[text]; err != nil {
		return nil, err
	}
	return r.results[text], nil
}

func (r *scriptedRetriever) SearchImage(ctx context.Context, image []byte) ([]domain.FrameRecord, error) {
	return nil, nil
}

func frame(video, id string) domain.FrameRecord {
	return domain.FrameRecord{VideoID: video, FrameID: id}
}

func hit(video, id string) domain.Hit {
	return domain.Hit{FrameRecord: frame(video, id)}
}

func TestClipRetriever_TopKOrderAndUnknownKeys(t *testing.T) {
	corpus := mapCorpus{
		1: frame("v1", "00001.jpg"),
		2: frame("v1", "00002.jpg"),
		3: frame("v2", "00003.jpg"),
	}
	index := &stubIndex{keys: []int64{3, 99, 1, 2}}
	r := NewClipRetriever(domain.BackendAppleCLIP, &stubEmbedder{}, index, corpus, 3, nil)

	frames, err := r.SearchText(context.Background(), "a dog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []domain.FrameRecord{frame("v2", "00003.jpg"), frame("v1", "00001.jpg")}
	if len(frames) != len(expected) {
		t.Fatalf("expected %d frames, got %d: %v", len(expected), len(frames), frames)
	}
	for i := range expected {
		if frames[i] != expected[i] {
			t.Errorf("frame %d: expected %v, got %v", i, expected[i], frames[i])
		}
	}
}

func TestClipRetriever_ErrorClassification(t *testing.T) {
	corpus := mapCorpus{}

	r := NewClipRetriever(domain.BackendLaionCLIP, &stubEmbedder{err: errors.New("model crashed")}, &stubIndex{}, corpus, 10, nil)
	if _, err := r.SearchImage(context.Background(), []byte("img")); !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}

	r = NewClipRetriever(domain.BackendLaionCLIP, &stubEmbedder{}, &stubIndex{err: errors.New("disk gone")}, corpus, 10, nil)
	_, err := r.SearchText(context.Background(), "x")
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
	if domain.IsClientFault(err) {
		t.Error("index failure must not be a client fault")
	}

	r = NewClipRetriever(domain.BackendLaionCLIP, &stubEmbedder{err: context.Canceled}, &stubIndex{}, corpus, 10, nil)
	_, err = r.SearchText(context.Background(), "x")
	if !errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected bare cancellation, got %v", err)
	}
}

func TestSelector(t *testing.T) {
	apple := &scriptedRetriever{}
	s := NewSelector(map[domain.Backend]port.FrameRetriever{
		domain.BackendAppleCLIP: apple,
		domain.Backend("dino"):  &scriptedRetriever{},
	})

	if r, ok := s.Select(domain.BackendAppleCLIP); !ok || r != apple {
		t.Error("expected apple_clip retriever")
	}
	if _, ok := s.Select(domain.BackendLaionCLIP); ok {
		t.Error("expected laion_clip to be unconfigured")
	}
	if _, ok := s.Select("dino"); ok {
		t.Error("expected unknown backend to be rejected")
	}
	if got := s.Backends(); len(got) != 1 || got[0] != domain.BackendAppleCLIP {
		t.Errorf("expected [apple_clip], got %v", got)
	}
}

func TestCommonByVideo(t *testing.T) {
	tests := []struct {
		name     string
		lists    [][]domain.Hit
		expected []domain.Hit
	}{
		{
			name:     "single list passes through",
			lists:    [][]domain.Hit{{hit("v1", "3.jpg"), hit("v2", "1.jpg")}},
			expected: []domain.Hit{hit("v1", "3.jpg"), hit("v2", "1.jpg")},
		},
		{
			name: "later frame required in every list",
			lists: [][]domain.Hit{
				{hit("v1", "00010.jpg"), hit("v2", "00020.jpg"), hit("v3", "00001.jpg")},
				{hit("v1", "00050.jpg"), hit("v2", "00030.jpg"), hit("v3", "00009.jpg")},
				{hit("v1", "00060.jpg"), hit("v2", "00010.jpg")},
			},
			expected: []domain.Hit{hit("v1", "00010.jpg")},
		},
		{
			name: "equal ordinal does not survive",
			lists: [][]domain.Hit{
				{hit("v1", "5.jpg")},
				{hit("v1", "5.jpg")},
			},
			expected: []domain.Hit{},
		},
		{
			name: "unparsable ordinal never survives",
			lists: [][]domain.Hit{
				{hit("v1", "intro.jpg"), hit("v1", "2.jpg")},
				{hit("v1", "last.jpg"), hit("v1", "9.jpg")},
			},
			expected: []domain.Hit{hit("v1", "2.jpg")},
		},
		{
			name: "base order preserved",
			lists: [][]domain.Hit{
				{hit("v2", "1.jpg"), hit("v1", "1.jpg"), hit("v2", "2.jpg")},
				{hit("v1", "7.jpg"), hit("v2", "8.jpg")},
			},
			expected: []domain.Hit{hit("v2", "1.jpg"), hit("v1", "1.jpg"), hit("v2", "2.jpg")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommonByVideo(tt.lists)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertHits(t, tt.expected, got)
		})
	}
}

func TestCommonByVideo_NoLists(t *testing.T) {
	_, err := CommonByVideo(nil)
	if !errors.Is(err, domain.ErrNoEvidenceLists) {
		t.Errorf("expected ErrNoEvidenceLists, got %v", err)
	}
}

func TestCommonByVideo_Downsampling(t *testing.T) {
	tests := []struct {
		size     int
		expected int
	}{
		{size: 250, expected: 2},
		{size: 100, expected: 1},
		{size: 99, expected: 99},
		{size: 50, expected: 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.size), func(t *testing.T) {
			base := make([]domain.Hit, tt.size)
			for i := range base {
				base[i] = hit(fmt.Sprintf("v%d", i), "1.jpg")
			}
			later := make([]domain.Hit, tt.size)
			for i := range later {
				later[i] = hit(fmt.Sprintf("v%d", i), "2.jpg")
			}

			got, err := CommonByVideo([][]domain.Hit{base, later})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.expected {
				t.Fatalf("expected %d frames, got %d", tt.expected, len(got))
			}
			for i := range got {
				if got[i].Key() != base[i].Key() {
					t.Errorf("expected front of common list at %d, got %v", i, got[i])
				}
			}
		})
	}
}

func TestCommonByVideo_AddingListNeverGrowsResult(t *testing.T) {
	a := []domain.Hit{hit("v1", "1.jpg"), hit("v2", "1.jpg"), hit("v3", "4.jpg")}
	b := []domain.Hit{hit("v1", "3.jpg"), hit("v2", "2.jpg"), hit("v3", "5.jpg")}
	c := []domain.Hit{hit("v1", "9.jpg"), hit("v3", "1.jpg")}

	two, _ := CommonByVideo([][]domain.Hit{a, b})
	three, _ := CommonByVideo([][]domain.Hit{a, b, c})

	if len(three) > len(two) {
		t.Fatalf("expected at most %d survivors, got %d", len(two), len(three))
	}
	inTwo := make(map[string]bool)
	for _, h := range two {
		inTwo[h.Key()] = true
	}
	for _, h := range three {
		if !inTwo[h.Key()] {
			t.Errorf("%v survived three lists but not two", h)
		}
	}
}

func TestEventFuser_TwoEventScenario(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]domain.FrameRecord{
		"person enters room": {frame("v1", "00010.jpg"), frame("v2", "00010.jpg")},
		"person sits down":   {frame("v1", "00050.jpg"), frame("v2", "00005.jpg")},
	}}

	got, err := NewEventFuser(2).Search(context.Background(), r, []string{"person enters room", "person sits down"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != frame("v1", "00010.jpg") {
		t.Errorf("expected only v1/00010.jpg, got %v", got)
	}
	if len(r.calls) != 2 {
		t.Errorf("expected 2 retrievals, got %d", len(r.calls))
	}
}

func TestEventFuser_PropagatesError(t *testing.T) {
	r := &scriptedRetriever{
		results: map[string][]domain.FrameRecord{"a": {frame("v1", "1.jpg")}},
		errs:    map[string]error{"b": domain.ErrIndexUnavailable},
	}

	_, err := NewEventFuser(0).Search(context.Background(), r, []string{"a", "b"})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestIntersectHits(t *testing.T) {
	withScore := domain.Hit{FrameRecord: frame("v1", "1.jpg"), Attrs: map[string]string{"score": "0.9"}}
	ocr := []domain.Hit{hit("v2", "4.jpg"), withScore, hit("v1", "2.jpg"), hit("v2", "4.jpg")}
	asr := []domain.Hit{hit("v1", "2.jpg"), hit("v1", "1.jpg"), hit("v2", "4.jpg")}

	got := IntersectHits(ocr, asr)
	assertHits(t, []domain.Hit{hit("v2", "4.jpg"), hit("v1", "2.jpg")}, got)

	if len(got) > len(asr) || len(got) > len(ocr) {
		t.Errorf("intersection larger than an input: %d", len(got))
	}

	self := []domain.Hit{hit("v1", "1.jpg"), withScore, hit("v3", "7.jpg")}
	assertHits(t, self, IntersectHits(self, self))
}

func TestPrioritize_StablePartition(t *testing.T) {
	pool := []domain.Hit{hit("v1", "1.jpg"), hit("v2", "2.jpg"), hit("v3", "3.jpg"), hit("v4", "4.jpg")}
	channels := map[domain.Source][]domain.Hit{
		domain.SourceOCR: {hit("v3", "3.jpg"), hit("v1", "1.jpg")},
		domain.SourceASR: {hit("v1", "1.jpg"), hit("v2", "2.jpg")},
	}

	got := Prioritize(pool, []domain.Source{domain.SourceASR, domain.SourceOCR}, channels)
	assertHits(t, []domain.Hit{hit("v1", "1.jpg"), hit("v2", "2.jpg"), hit("v3", "3.jpg"), hit("v4", "4.jpg")}, got)

	got = Prioritize(pool, []domain.Source{domain.SourceOCR, domain.SourceASR}, channels)
	assertHits(t, []domain.Hit{hit("v1", "1.jpg"), hit("v3", "3.jpg"), hit("v2", "2.jpg"), hit("v4", "4.jpg")}, got)

	channels[domain.SourceClip] = nil
	got = Prioritize(pool, []domain.Source{domain.SourceClip, domain.SourceOCR}, channels)
	assertHits(t, pool, got)
}

func TestMultiModalFuser_IntersectionWithoutText(t *testing.T) {
	r := &scriptedRetriever{}
	q := domain.MultiModalQuery{
		Backend:  domain.BackendAppleCLIP,
		OCR:      []domain.Hit{hit("v1", "1.jpg"), hit("v2", "2.jpg")},
		ASR:      []domain.Hit{hit("v2", "2.jpg"), hit("v3", "3.jpg")},
		Priority: []domain.Source{domain.SourceOCR, domain.SourceASR},
	}

	res, err := NewMultiModalFuser().Search(context.Background(), r, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}
	if len(res.Frames) != 1 || res.Frames[0] != frame("v2", "2.jpg") {
		t.Errorf("expected [v2/2.jpg], got %v", res.Frames)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no semantic retrieval, got %v", r.calls)
	}
}

func TestMultiModalFuser_RedCarScenario(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]domain.FrameRecord{
		"a red car": {frame("v1", "3.jpg"), frame("v2", "40.jpg")},
	}}
	q := domain.MultiModalQuery{
		Backend:  domain.BackendAppleCLIP,
		Text:     "a red car",
		OCR:      []domain.Hit{hit("v1", "5.jpg")},
		Priority: []domain.Source{domain.SourceOCR, domain.SourceClip},
	}

	res, err := NewMultiModalFuser().Search(context.Background(), r, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusOK {
		t.Fatalf("expected ok status from the fusion branch, got %s", res.Status)
	}
	if len(res.Frames) != 0 {
		t.Errorf("expected no frames, got %v", res.Frames)
	}
	if len(r.calls) != 1 || r.calls[0] != "a red car" {
		t.Errorf("expected one semantic retrieval, got %v", r.calls)
	}
}

func TestMultiModalFuser_TextFusionFollowsPriority(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]domain.FrameRecord{
		"goal": {frame("v1", "1.jpg"), frame("v2", "1.jpg")},
	}}
	q := domain.MultiModalQuery{
		Text:     "goal",
		ASR:      []domain.Hit{hit("v1", "9.jpg"), hit("v2", "9.jpg")},
		Priority: []domain.Source{domain.SourceClip, domain.SourceASR},
	}

	res, err := NewMultiModalFuser().Search(context.Background(), r, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []domain.FrameRecord{frame("v1", "1.jpg"), frame("v2", "1.jpg")}
	if len(res.Frames) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, res.Frames)
	}
	for i := range expected {
		if res.Frames[i] != expected[i] {
			t.Errorf("frame %d: expected %v, got %v", i, expected[i], res.Frames[i])
		}
	}
}

func TestMultiModalFuser_InsufficientEvidence(t *testing.T) {
	tests := []struct {
		name string
		q    domain.MultiModalQuery
	}{
		{name: "text only", q: domain.MultiModalQuery{Text: "a"}},
		{name: "ocr only", q: domain.MultiModalQuery{OCR: []domain.Hit{hit("v1", "1.jpg")}}},
		{name: "blank text and asr", q: domain.MultiModalQuery{Text: "  ", ASR: []domain.Hit{hit("v1", "1.jpg")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRetriever{}
			res, err := NewMultiModalFuser().Search(context.Background(), r, tt.q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != domain.StatusInsufficientEvidence {
				t.Errorf("expected insufficient evidence, got %s", res.Status)
			}
			if len(r.calls) != 0 {
				t.Errorf("expected no retrieval, got %v", r.calls)
			}
		})
	}
}

func assertHits(t *testing.T, expected, got []domain.Hit) {
	t.Helper()
	if len(expected) != len(got) {
		t.Fatalf("expected %d hits, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if expected[i].Key() != got[i].Key() {
			t.Errorf("hit %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}
