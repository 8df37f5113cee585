package gositemapgenerator

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileAdapter writes sitemaps below the location's public path. Files whose
// name ends in .gz are gzip-compressed.
type FileAdapter struct {
	// FileMode of written files (default 0o644).
	FileMode os.FileMode
}

// NewFileAdapter returns a FileAdapter with default permissions.
func NewFileAdapter() *FileAdapter {
	return &FileAdapter{FileMode: 0o644}
}

// Write implements Adapter.
func (a *FileAdapter) Write(ctx context.Context, loc *Location, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := loc.Directory()
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%s should be a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	path := loc.Path()
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	payload := data
	if loc.Compressed() {
		compressed, err := gzipBytes(data)
		if err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
		payload = compressed
	}
	mode := a.FileMode
	if mode == 0 {
		mode = 0o644
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MemoryAdapter keeps written documents in memory, keyed by local path. It is
// useful for dry runs and tests.
type MemoryAdapter struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
}

// NewMemoryAdapter returns an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{files: make(map[string][]byte)}
}

// Write implements Adapter. Documents are stored uncompressed.
func (m *MemoryAdapter) Write(ctx context.Context, loc *Location, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := loc.Path()
	if _, ok := m.files[path]; !ok {
		m.order = append(m.order, path)
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// Get returns the document written at path.
func (m *MemoryAdapter) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

// Paths returns written paths in write order.
func (m *MemoryAdapter) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// SortedPaths returns written paths in lexical order.
func (m *MemoryAdapter) SortedPaths() []string {
	paths := m.Paths()
	sort.Strings(paths)
	return paths
}
