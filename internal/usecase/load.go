package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"framesearch/internal/adapter/fs"
	"framesearch/internal/adapter/store"
	"framesearch/internal/port"
)

const defaultLoadBatch = 1000

// FrameWriter persists corpus mapping entries.
type FrameWriter interface {
	PutFrames(entries []store.MappingEntry) error
}

// VectorWriter persists one backend's precomputed vectors.
type VectorWriter interface {
	Upsert(items []port.VectorItem) error
}

// ProgressFunc is called after each shard file is loaded.
type ProgressFunc func(path string, entries int)

// LoadUseCase imports corpus mapping and vector shards from disk.
type LoadUseCase struct {
	frames    FrameWriter
	newWalker func(includes []string) port.FileWalker
	batchSize int
	logger    *slog.Logger
}

// NewLoadUseCase creates a new load use case.
func NewLoadUseCase(frames FrameWriter, logger *slog.Logger) *LoadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadUseCase{
		frames: frames,
		newWalker: func(includes []string) port.FileWalker {
			return fs.NewWalker(includes, nil)
		},
		batchSize: defaultLoadBatch,
		logger:    logger,
	}
}

// LoadResult summarises a load.
type LoadResult struct {
	Files   int
	Entries int
}

// Discover lists the shard files under root matching patterns, so callers
// can size progress reporting before loading.
func (u *LoadUseCase) Discover(root string, patterns []string) ([]port.FileInfo, error) {
	files, err := u.newWalker(patterns).Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// LoadMappings imports mapping files, each a JSON array of
// {"indice", "video_id", "frame_id"} objects.
func (u *LoadUseCase) LoadMappings(ctx context.Context, files []port.FileInfo, progress ProgressFunc) (*LoadResult, error) {
	result := &LoadResult{}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		entries, err := readMapping(file.Path)
		if err != nil {
			return result, err
		}

		for start := 0; start < len(entries); start += u.batchSize {
			end := min(start+u.batchSize, len(entries))
			if err := u.frames.PutFrames(entries[start:end]); err != nil {
				return result, fmt.Errorf("failed to store mapping from %s: %w", file.Path, err)
			}
		}

		result.Files++
		result.Entries += len(entries)
		u.logger.Debug("mapping shard loaded", "path", file.Path, "entries", len(entries))
		if progress != nil {
			progress(file.Path, len(entries))
		}
	}

	return result, nil
}

// LoadVectors imports vector files, each holding a stream of
// {"indice", "vector"} objects, into dst.
func (u *LoadUseCase) LoadVectors(ctx context.Context, files []port.FileInfo, dst VectorWriter, progress ProgressFunc) (*LoadResult, error) {
	result := &LoadResult{}

	for _, file := range files {
		n, err := u.loadVectorFile(ctx, file.Path, dst)
		result.Entries += n
		if err != nil {
			return result, err
		}

		result.Files++
		u.logger.Debug("vector shard loaded", "path", file.Path, "vectors", n)
		if progress != nil {
			progress(file.Path, n)
		}
	}

	return result, nil
}

func (u *LoadUseCase) loadVectorFile(ctx context.Context, path string, dst VectorWriter) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	batch := make([]port.VectorItem, 0, u.batchSize)
	loaded := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.Upsert(batch); err != nil {
			return fmt.Errorf("failed to store vectors from %s: %w", path, err)
		}
		loaded += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		var item port.VectorItem
		err := dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to decode %s: %w", path, err)
		}

		batch = append(batch, item)
		if len(batch) == u.batchSize {
			if err := ctx.Err(); err != nil {
				return loaded, err
			}
			if err := flush(); err != nil {
				return loaded, err
			}
		}
	}

	return loaded, flush()
}

func readMapping(path string) ([]store.MappingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []store.MappingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}
