package port

// FileWalker discovers corpus shard files (mapping or vector dumps) under a
// root path.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

// FileInfo describes one discovered shard.
type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
