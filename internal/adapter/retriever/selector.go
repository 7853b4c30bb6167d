package retriever

import (
	"sort"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// Selector routes a backend name to that backend's retriever. It never falls
// back to another backend: an unknown or unconfigured name is reported to
// the caller.
type Selector struct {
	retrievers map[domain.Backend]port.FrameRetriever
}

// NewSelector registers the given retrievers. Names outside the supported
// backend set are ignored.
func NewSelector(retrievers map[domain.Backend]port.FrameRetriever) *Selector {
	s := &Selector{retrievers: make(map[domain.Backend]port.FrameRetriever, len(retrievers))}
	for backend, r := range retrievers {
		if backend.Known() && r != nil {
			s.retrievers[backend] = r
		}
	}
	return s
}

// Select returns the retriever for name, or false if there is none.
func (s *Selector) Select(name domain.Backend) (port.FrameRetriever, bool) {
	r, ok := s.retrievers[name]
	return r, ok
}

// Backends lists the configured backends in name order.
func (s *Selector) Backends() []domain.Backend {
	out := make([]domain.Backend, 0, len(s.retrievers))
	for b := range s.retrievers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
