package store

import (
	"context"
	"fmt"

	"image-track-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists entries in two tables: images, and image_views with
// a serial position column preserving append order. Mutations rely on the
// database's transactional isolation instead of an in-process lock.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store and ensures its schema
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS images (
			id            TEXT PRIMARY KEY,
			filename      TEXT NOT NULL,
			original_name TEXT NOT NULL,
			sender_name   TEXT NOT NULL,
			uploaded_at   TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS image_views (
			position   BIGSERIAL PRIMARY KEY,
			image_id   TEXT NOT NULL REFERENCES images(id),
			viewed_at  TIMESTAMPTZ NOT NULL,
			latitude   DOUBLE PRECISION,
			longitude  DOUBLE PRECISION,
			user_agent TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_image_views_image_id ON image_views(image_id);
	`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Load returns the full current collection with view history, oldest upload first
func (s *PostgresStore) Load(ctx context.Context) ([]models.ImageEntry, error) {
	query := `
		SELECT id, filename, original_name, sender_name, uploaded_at
		FROM images
		ORDER BY uploaded_at, id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query images: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entries := []models.ImageEntry{}
	index := make(map[string]int)
	for rows.Next() {
		var entry models.ImageEntry
		err := rows.Scan(
			&entry.ID, &entry.FileName, &entry.OriginalName,
			&entry.SenderName, &entry.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan image: %v", ErrStoreUnavailable, err)
		}
		entry.Views = []models.ViewRecord{}
		index[entry.ID] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating images: %v", ErrStoreUnavailable, err)
	}

	viewQuery := `
		SELECT image_id, viewed_at, latitude, longitude, user_agent
		FROM image_views
		ORDER BY position
	`
	viewRows, err := s.db.Query(ctx, viewQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query views: %v", ErrStoreUnavailable, err)
	}
	defer viewRows.Close()

	for viewRows.Next() {
		var imageID string
		var view models.ViewRecord
		err := viewRows.Scan(&imageID, &view.Timestamp, &view.Latitude, &view.Longitude, &view.UserAgent)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan view: %v", ErrStoreUnavailable, err)
		}
		if i, ok := index[imageID]; ok {
			entries[i].Views = append(entries[i].Views, view)
		}
	}
	if err := viewRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating views: %v", ErrStoreUnavailable, err)
	}

	return entries, nil
}

// Append adds a new entry; the primary key rejects duplicate ids
func (s *PostgresStore) Append(ctx context.Context, entry *models.ImageEntry) error {
	query := `
		INSERT INTO images (id, filename, original_name, sender_name, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.Exec(ctx, query,
		entry.ID, entry.FileName, entry.OriginalName, entry.SenderName, entry.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
	}
	return nil
}

// AppendView records a view for the entry with the given id inside a
// transaction, so the existence check and the insert form one atomic step
func (s *PostgresStore) AppendView(ctx context.Context, id string, view models.ViewRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists string
	err = tx.QueryRow(ctx, `SELECT id FROM images WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up image: %w", err)
	}

	insert := `
		INSERT INTO image_views (image_id, viewed_at, latitude, longitude, user_agent)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert, id, view.Timestamp, view.Latitude, view.Longitude, view.UserAgent); err != nil {
		return false, fmt.Errorf("failed to insert view: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit view: %w", err)
	}
	return true, nil
}

// Get returns the entry with the given id and its view history
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.ImageEntry, error) {
	query := `
		SELECT id, filename, original_name, sender_name, uploaded_at
		FROM images
		WHERE id = $1
	`
	var entry models.ImageEntry
	err := s.db.QueryRow(ctx, query, id).Scan(
		&entry.ID, &entry.FileName, &entry.OriginalName,
		&entry.SenderName, &entry.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to get image: %v", ErrStoreUnavailable, err)
	}

	viewQuery := `
		SELECT viewed_at, latitude, longitude, user_agent
		FROM image_views
		WHERE image_id = $1
		ORDER BY position
	`
	rows, err := s.db.Query(ctx, viewQuery, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query views: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entry.Views = []models.ViewRecord{}
	for rows.Next() {
		var view models.ViewRecord
		if err := rows.Scan(&view.Timestamp, &view.Latitude, &view.Longitude, &view.UserAgent); err != nil {
			return nil, fmt.Errorf("%w: failed to scan view: %v", ErrStoreUnavailable, err)
		}
		entry.Views = append(entry.Views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating views: %v", ErrStoreUnavailable, err)
	}

	return &entry, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() {
	s.db.Close()
}
