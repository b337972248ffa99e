package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"time"

	"image-track-backend/internal/blob"
	"image-track-backend/internal/models"
	"image-track-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoFile is returned when an upload request carries no file payload
var ErrNoFile = errors.New("no image uploaded")

// TrackingService translates validated requests into store operations
type TrackingService struct {
	store store.Store
	blobs blob.Storage
	hub   *WSHub
}

// NewTrackingService creates a new tracking service. hub may be nil when no
// dashboard feed is wired.
func NewTrackingService(st store.Store, blobs blob.Storage, hub *WSHub) *TrackingService {
	return &TrackingService{
		store: st,
		blobs: blobs,
		hub:   hub,
	}
}

// FileUpload is the decoded file payload handed over by the transport layer
type FileUpload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// UploadResult carries the assigned id and the shareable tracking link
type UploadResult struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// HandleUpload stores the uploaded binary, creates the entry and returns its
// tracking link. Fails with ErrNoFile when no payload is present.
func (s *TrackingService) HandleUpload(ctx context.Context, upload *FileUpload, senderName string) (*UploadResult, error) {
	if upload == nil || upload.Body == nil {
		return nil, ErrNoFile
	}
	if senderName == "" {
		senderName = "Anonymous"
	}

	storedName := storedFileName(upload.OriginalName)
	if err := s.blobs.Save(ctx, storedName, upload.ContentType, upload.Body); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	entry := &models.ImageEntry{
		ID:           uuid.NewString(),
		FileName:     storedName,
		OriginalName: upload.OriginalName,
		SenderName:   senderName,
		UploadedAt:   time.Now().UTC(),
		Views:        []models.ViewRecord{},
	}

	err := s.store.Append(ctx, entry)
	if errors.Is(err, store.ErrDuplicateID) {
		// should not happen with UUID ids; retry once with a fresh one
		log.Warn().Str("id", entry.ID).Msg("Entry id collision, retrying with fresh id")
		entry.ID = uuid.NewString()
		err = s.store.Append(ctx, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	s.hub.Broadcast(WSMessage{
		Type:       "image_uploaded",
		ImageID:    entry.ID,
		SenderName: entry.SenderName,
		Timestamp:  entry.UploadedAt.UnixMilli(),
	})

	return &UploadResult{
		ID:   entry.ID,
		Link: "/view/" + entry.ID,
	}, nil
}

// Geo carries the optional client-supplied geolocation of a view
type Geo struct {
	Latitude  *float64
	Longitude *float64
}

// TrackView records one open of a tracking link. userAgent falls back to the
// transport-layer header when the client did not send one explicitly. An
// unknown id returns store.ErrNotFound and leaves the collection unchanged.
func (s *TrackingService) TrackView(ctx context.Context, id string, geo Geo, userAgent, headerUserAgent string) error {
	if userAgent == "" {
		userAgent = headerUserAgent
	}

	view := models.ViewRecord{
		Timestamp: time.Now().UTC(),
		Latitude:  geo.Latitude,
		Longitude: geo.Longitude,
		UserAgent: userAgent,
	}

	ok, err := s.store.AppendView(ctx, id, view)
	if err != nil {
		return fmt.Errorf("failed to append view: %w", err)
	}
	if !ok {
		// expected for stale or guessed links, not a fault
		log.Debug().Str("id", id).Msg("Track request for unknown entry")
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	s.hub.Broadcast(WSMessage{
		Type:      "view_tracked",
		ImageID:   id,
		Timestamp: view.Timestamp.UnixMilli(),
	})

	return nil
}

// GetEntry returns the entry with the given id, including its view history
func (s *TrackingService) GetEntry(ctx context.Context, id string) (*models.ImageEntry, error) {
	return s.store.Get(ctx, id)
}

// ListAll returns every entry in the store. The whole collection is
// materialized per call, which is fine at the intended scale.
func (s *TrackingService) ListAll(ctx context.Context) ([]models.ImageEntry, error) {
	return s.store.Load(ctx)
}

// storedFileName generates a stored name in the {millis}-{random}{ext} shape,
// keeping the original extension
func storedFileName(originalName string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Int63n(1e9), filepath.Ext(originalName))
}
