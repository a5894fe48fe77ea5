package segment

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend persists the store's payload to a single file, replaced
// atomically via write-to-temp plus rename so a crash mid-save never leaves
// a corrupt payload.
type FileBackend struct {
	path string
}

// NewFileBackend creates a FileBackend at the given path. Parent directories
// are created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the stored payload. A missing file is not an error.
func (b *FileBackend) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read segment file: %w", err)
	}
	return data, true, nil
}

// Save atomically replaces the stored payload.
func (b *FileBackend) Save(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create segment dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp segment file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp segment file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp segment file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp segment file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace segment file: %w", err)
	}
	return nil
}
