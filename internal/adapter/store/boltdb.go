package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"framesearch/internal/domain"
)

var (
	bucketFrames = []byte("frames")
	bucketMeta   = []byte("meta")
)

// BoltStore persists the corpus mapping and the per-backend vectors in one
// bolt file.
type BoltStore struct {
	db *bbolt.DB
}

// MappingEntry is one row of a corpus mapping file.
type MappingEntry struct {
	Indice  int64  `json:"indice"`
	VideoID string `json:"video_id"`
	FrameID string `json:"frame_id"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFrames, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeKey(key int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(key))
	return b
}

func decodeKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// PutFrames writes a batch of mapping entries in one transaction.
func (s *BoltStore) PutFrames(entries []MappingEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFrames)
		for _, e := range entries {
			if e.VideoID == "" || e.FrameID == "" {
				return fmt.Errorf("mapping entry %d: video_id and frame_id are required", e.Indice)
			}
			data, err := json.Marshal(domain.FrameRecord{VideoID: e.VideoID, FrameID: e.FrameID})
			if err != nil {
				return err
			}
			if err := b.Put(encodeKey(e.Indice), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFrame looks up a single mapping entry.
func (s *BoltStore) GetFrame(key int64) (domain.FrameRecord, bool, error) {
	var frame domain.FrameRecord
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFrames).Get(encodeKey(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &frame)
	})
	return frame, found, err
}

// ForEachFrame visits every mapping entry in key order.
func (s *BoltStore) ForEachFrame(fn func(key int64, frame domain.FrameRecord) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFrames).ForEach(func(k, v []byte) error {
			var frame domain.FrameRecord
			if err := json.Unmarshal(v, &frame); err != nil {
				return fmt.Errorf("corrupt frame entry %d: %w", decodeKey(k), err)
			}
			return fn(decodeKey(k), frame)
		})
	})
}

// FrameCount returns the number of mapping entries.
func (s *BoltStore) FrameCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketFrames).Stats().KeyN
		return nil
	})
	return n, err
}

// VectorCount returns how many vectors are stored for backend without
// loading them.
func (s *BoltStore) VectorCount(backend domain.Backend) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(VectorBucket(backend)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}
