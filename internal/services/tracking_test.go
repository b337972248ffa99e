package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image-track-backend/internal/blob"
	"image-track-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*TrackingService, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewFileStore(filepath.Join(dir, "database.json"))
	require.NoError(t, err)
	uploads := filepath.Join(dir, "uploads")
	blobs, err := blob.NewLocalStorage(uploads)
	require.NoError(t, err)
	return NewTrackingService(st, blobs, nil), uploads
}

func testUpload(name string) *FileUpload {
	return &FileUpload{
		OriginalName: name,
		ContentType:  "image/png",
		Size:         4,
		Body:         strings.NewReader("data"),
	}
}

func TestHandleUpload_NoFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.HandleUpload(context.Background(), nil, "Alice")
	assert.ErrorIs(t, err, ErrNoFile)

	entries, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleUpload_CreatesEntryWithEmptyViews(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "/view/"+result.ID, result.Link)

	entries, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].SenderName)
	assert.Equal(t, "cat.png", entries[0].OriginalName)
	assert.Empty(t, entries[0].Views)
}

func TestHandleUpload_AnonymousSenderDefault(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.HandleUpload(context.Background(), testUpload("cat.png"), "")
	require.NoError(t, err)

	entry, err := svc.GetEntry(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", entry.SenderName)
}

func TestHandleUpload_StoresBinary(t *testing.T) {
	svc, uploads := newTestService(t)

	result, err := svc.HandleUpload(context.Background(), testUpload("cat.png"), "Alice")
	require.NoError(t, err)

	entry, err := svc.GetEntry(context.Background(), result.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(entry.FileName, ".png"))

	data, err := os.ReadFile(filepath.Join(uploads, entry.FileName))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestHandleUpload_BackToBackUploadsGetDistinctIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		result, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
		require.NoError(t, err)
		assert.False(t, seen[result.ID], "id %s assigned twice", result.ID)
		seen[result.ID] = true
	}
}

func TestTrackView_RecordsGeoAndUserAgent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
	require.NoError(t, err)

	lat, lng := 1.5, 2.5
	err = svc.TrackView(ctx, result.ID, Geo{Latitude: &lat, Longitude: &lng}, "client-agent", "header-agent")
	require.NoError(t, err)

	entry, err := svc.GetEntry(ctx, result.ID)
	require.NoError(t, err)
	require.Len(t, entry.Views, 1)
	require.NotNil(t, entry.Views[0].Latitude)
	require.NotNil(t, entry.Views[0].Longitude)
	assert.Equal(t, 1.5, *entry.Views[0].Latitude)
	assert.Equal(t, 2.5, *entry.Views[0].Longitude)
	assert.Equal(t, "client-agent", entry.Views[0].UserAgent)
	assert.False(t, entry.Views[0].Timestamp.IsZero())
}

func TestTrackView_UserAgentFallsBackToHeader(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.TrackView(ctx, result.ID, Geo{}, "", "header-agent"))

	entry, err := svc.GetEntry(ctx, result.ID)
	require.NoError(t, err)
	require.Len(t, entry.Views, 1)
	assert.Equal(t, "header-agent", entry.Views[0].UserAgent)
	assert.Nil(t, entry.Views[0].Latitude)
	assert.Nil(t, entry.Views[0].Longitude)
}

func TestTrackView_UnknownIDLeavesCollectionUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
	require.NoError(t, err)

	err = svc.TrackView(ctx, "abc", Geo{}, "", "header-agent")
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Views)
}

func TestTrackView_ViewsAccumulate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.HandleUpload(ctx, testUpload("cat.png"), "Alice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.TrackView(ctx, result.ID, Geo{}, "ua", "ua"))
	}

	entry, err := svc.GetEntry(ctx, result.ID)
	require.NoError(t, err)
	assert.Len(t, entry.Views, 3)
}
