package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"image-track-backend/internal/models"
)

// FileStore persists the whole collection as a single JSON document. Every
// mutation runs a load-mutate-persist cycle under one mutex, so concurrent
// Append/AppendView calls are serialized and never overwrite each other's
// effect. Persisting writes to a temp file and renames it over the document,
// so a failed write leaves the previous state intact.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store backed by the JSON document at path,
// creating an empty document (and its parent directory) if none exists.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeAtomic(path, []byte("[]")); err != nil {
			return nil, fmt.Errorf("failed to initialize store file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &FileStore{path: path}, nil
}

// Load returns the full current collection
func (s *FileStore) Load(ctx context.Context) ([]models.ImageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Append adds a new entry to the collection
func (s *FileStore) Append(ctx context.Context, entry *models.ImageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == entry.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
		}
	}
	entries = append(entries, *entry)
	return s.persist(entries)
}

// AppendView appends a view to the entry with the given id and reports
// whether the entry existed
func (s *FileStore) AppendView(ctx context.Context, id string, view models.ViewRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Views = append(entries[i].Views, view)
			if err := s.persist(entries); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Get returns the entry with the given id
func (s *FileStore) Get(ctx context.Context, id string) (*models.ImageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			entry := entries[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Close is a no-op: every mutation is flushed before its call returns
func (s *FileStore) Close() {}

// read loads and decodes the document. Caller must hold s.mu.
func (s *FileStore) read() ([]models.ImageEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var entries []models.ImageEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: corrupt store document: %v", ErrStoreUnavailable, err)
	}
	if entries == nil {
		entries = []models.ImageEntry{}
	}
	return entries, nil
}

// persist encodes and atomically replaces the document. Caller must hold s.mu.
func (s *FileStore) persist(entries []models.ImageEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store document: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory and renames it
// over path, so readers never observe a partially written document
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
