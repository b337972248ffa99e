package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"image-track-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "database.json"))
	require.NoError(t, err)
	return s
}

func testEntry(id string) *models.ImageEntry {
	return &models.ImageEntry{
		ID:           id,
		FileName:     "1700000000000-42.png",
		OriginalName: "cat.png",
		SenderName:   "Alice",
		UploadedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Views:        []models.ViewRecord{},
	}
}

func TestFileStore_EmptyOnCreation(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestFileStore_AppendAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("e1")
	require.NoError(t, s.Append(ctx, entry))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.FileName, got.FileName)
	assert.Equal(t, entry.OriginalName, got.OriginalName)
	assert.Equal(t, entry.SenderName, got.SenderName)
	assert.True(t, entry.UploadedAt.Equal(got.UploadedAt))
	assert.Empty(t, got.Views)
}

func TestFileStore_AppendDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testEntry("e1")))
	err := s.Append(ctx, testEntry("e1"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_GetUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_AppendViewUnknownIDLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testEntry("e1")))

	ok, err := s.AppendView(ctx, "abc", models.ViewRecord{Timestamp: time.Now(), UserAgent: "ua"})
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Views)
}

func TestFileStore_AppendViewPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testEntry("e1")))

	for i := 0; i < 5; i++ {
		ok, err := s.AppendView(ctx, "e1", models.ViewRecord{
			Timestamp: time.Now(),
			UserAgent: fmt.Sprintf("agent-%d", i),
		})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, got.Views, 5)
	for i, v := range got.Views {
		assert.Equal(t, fmt.Sprintf("agent-%d", i), v.UserAgent)
	}
}

func TestFileStore_ConcurrentAppendViewsNoLostUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testEntry("e1")))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.AppendView(ctx, "e1", models.ViewRecord{
				Timestamp: time.Now(),
				UserAgent: fmt.Sprintf("agent-%d", i),
			})
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, got.Views, writers)
}

func TestFileStore_ConcurrentAppendsAllLand(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, testEntry(fmt.Sprintf("e%d", i))))
		}(i)
	}
	wg.Wait()

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, writers)

	seen := make(map[string]bool)
	for _, e := range entries {
		assert.False(t, seen[e.ID], "id %s appeared twice", e.ID)
		seen[e.ID] = true
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, testEntry("e1")))
	ok, err := s.AppendView(ctx, "e1", models.ViewRecord{Timestamp: time.Now(), UserAgent: "ua"})
	require.NoError(t, err)
	require.True(t, ok)
	s.Close()

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.SenderName)
	assert.Len(t, got.Views, 1)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = s.Append(context.Background(), testEntry("e1"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFileStore_EmptyViewsSerializeAsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), testEntry("e1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"views": []`)
	assert.NotContains(t, string(data), `"views": null`)
}
