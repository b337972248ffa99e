package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage persists uploaded image binaries under their stored file name.
// The entry store only ever references the name; where the bytes live is a
// backend concern.
type Storage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) error
}

// LocalStorage writes binaries as individual files in a directory
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a local storage rooted at dir, creating it if needed
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save streams the binary to a file named name inside the storage directory
func (s *LocalStorage) Save(ctx context.Context, name, contentType string, r io.Reader) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write upload file: %w", err)
	}
	return nil
}

// Dir returns the storage directory, for the static file server
func (s *LocalStorage) Dir() string {
	return s.dir
}
