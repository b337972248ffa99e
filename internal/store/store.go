package store

import (
	"context"
	"errors"

	"image-track-backend/internal/models"
)

var (
	// ErrNotFound is returned when no entry exists for the requested id
	ErrNotFound = errors.New("entry not found")
	// ErrDuplicateID is returned when appending an entry whose id already exists
	ErrDuplicateID = errors.New("duplicate entry id")
	// ErrStoreUnavailable is returned when the backing medium cannot be read or written
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the durable custodian of the image entry collection. Entries are
// append-only: created once at upload, mutated only by view appends, never
// deleted. Implementations must serialize mutations so that concurrent
// Append/AppendView calls never lose updates.
type Store interface {
	// Load returns the full current collection.
	Load(ctx context.Context) ([]models.ImageEntry, error)
	// Append adds a new entry. Fails with ErrDuplicateID if the id exists.
	Append(ctx context.Context, entry *models.ImageEntry) error
	// AppendView appends a view to the entry with the given id and reports
	// whether the entry existed. An unknown id leaves the collection unchanged.
	AppendView(ctx context.Context, id string, view models.ViewRecord) (bool, error)
	// Get returns the entry with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.ImageEntry, error)
	// Close flushes and releases the backing medium.
	Close()
}
