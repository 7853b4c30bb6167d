package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// BoltVectorStore is an exact nearest-neighbour index for one backend,
// persisted in its own bolt bucket and searched brute-force from memory.
type BoltVectorStore struct {
	db        *bbolt.DB
	bucket    []byte
	dimension int
	mu        sync.RWMutex
	vectors   map[int64][]float32
}

// VectorBucket returns the bucket name holding a backend's vectors.
func VectorBucket(backend domain.Backend) []byte {
	return []byte("vectors_" + string(backend))
}

// NewBoltVectorStore opens the vector bucket for backend and loads it.
func NewBoltVectorStore(db *bbolt.DB, backend domain.Backend, dimension int) (*BoltVectorStore, error) {
	bucket := VectorBucket(backend)
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s bucket: %w", bucket, err)
	}

	store := &BoltVectorStore{
		db:        db,
		bucket:    bucket,
		dimension: dimension,
		vectors:   make(map[int64][]float32),
	}

	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var vec []float32
			if err := json.Unmarshal(v, &vec); err != nil {
				return fmt.Errorf("corrupt vector %d: %w", decodeKey(k), err)
			}
			if len(vec) != s.dimension {
				return fmt.Errorf("stored vector %d has dimension %d, expected %d", decodeKey(k), len(vec), s.dimension)
			}
			s.vectors[decodeKey(k)] = vec
			return nil
		})
	})
}

// Upsert adds or updates vectors in the store. The batch is all or nothing:
// memory only changes once the bolt transaction has committed.
func (s *BoltVectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s bucket not found", s.bucket)
		}

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
			}

			data, err := json.Marshal(item.Vector)
			if err != nil {
				return err
			}
			if err := b.Put(encodeKey(item.Key), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, item := range items {
		s.vectors[item.Key] = item.Vector
	}
	return nil
}

// Search returns the k keys with the highest cosine similarity to query.
// Ties break on the smaller key so results are stable across runs.
func (s *BoltVectorStore) Search(ctx context.Context, query []float32, k int) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrIndexUnavailable, s.dimension, len(query))
	}

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	type scored struct {
		key   int64
		score float64
	}

	scores := make([]scored, 0, len(s.vectors))
	for key, vec := range s.vectors {
		scores = append(scores, scored{key: key, score: cosineSimilarity(query, vec)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].key < scores[j].key
	})

	if k > len(scores) {
		k = len(scores)
	}

	keys := make([]int64, k)
	for i := 0; i < k; i++ {
		keys[i] = scores[i].key
	}
	return keys, nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
