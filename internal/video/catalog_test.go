package video

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/migrate"
	"github.com/tordrt/schemasync/internal/testutil"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	ctx := context.Background()

	m, err := db.Open(ctx, filepath.Join(t.TempDir(), "videos.sqlite"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = migrate.NewReconciler(m, testutil.NewTestLogger(t)).Reconcile(ctx, Registry())
	require.NoError(t, err)

	c, err := NewCatalog(m, DefaultLimits())
	require.NoError(t, err)
	return c
}

func fakeVideo(i int) Video {
	return Video{
		Filename: fmt.Sprintf("%s-%d.mp4", gofakeit.Word(), i),
		Size:     int64(gofakeit.Number(1024, 25*1024*1024)),
		Duration: int64(gofakeit.Number(4, 300)),
	}
}

func TestNewCatalogRejectsInvalidLimits(t *testing.T) {
	_, err := NewCatalog(nil, Limits{})
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestAddAndGetVideo(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	in := fakeVideo(0)
	v, err := c.AddVideo(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, in.Filename, v.Filename)
	assert.Equal(t, in.Size, v.Size)
	assert.Equal(t, in.Duration, v.Duration)
	assert.False(t, v.CreatedAt.IsZero(), "created_at should come from the column default")

	got, err := c.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, v.Filename, got.Filename)
	assert.True(t, v.CreatedAt.Equal(got.CreatedAt))
}

func TestAddVideoChecksLimits(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.AddVideo(ctx, Video{Filename: "big.mp4", Size: c.Limits().MaxSize + 1, Duration: 30})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = c.AddVideo(ctx, Video{Filename: "short.mp4", Size: 1024, Duration: 1})
	assert.ErrorIs(t, err, ErrDurationOutOfRange)

	_, err = c.AddVideo(ctx, Video{Size: 1024, Duration: 30})
	assert.Error(t, err)
}

func TestUpdateLimits(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.AddVideo(ctx, Video{Filename: "long.mp4", Size: 1024, Duration: 600})
	require.ErrorIs(t, err, ErrDurationOutOfRange)

	longer := DefaultLimits()
	longer.MaxDuration = 900
	require.NoError(t, c.UpdateLimits(longer))
	assert.Equal(t, longer, c.Limits())

	_, err = c.AddVideo(ctx, Video{Filename: "long.mp4", Size: 1024, Duration: 600})
	require.NoError(t, err)

	err = c.UpdateLimits(Limits{MaxDuration: 10, MinDuration: 20, MaxSize: 1})
	assert.ErrorIs(t, err, ErrInvalidLimits)
	assert.Equal(t, longer, c.Limits(), "rejected limits leave the current ones in place")
}

func TestAddVideoDuplicateFilename(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	v := fakeVideo(1)
	_, err := c.AddVideo(ctx, v)
	require.NoError(t, err)

	_, err = c.AddVideo(ctx, v)
	require.Error(t, err)
	assert.True(t, db.IsConstraintViolation(err), "the unique filename index should reject duplicates")
}

func TestListAndDeleteVideos(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	var ids []string
	for i := range 5 {
		v, err := c.AddVideo(ctx, fakeVideo(i))
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}

	videos, err := c.ListVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, videos, 5)

	require.NoError(t, c.DeleteVideo(ctx, ids[0]))
	_, err = c.GetVideo(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DeleteVideo(ctx, ids[0]), ErrNotFound)

	videos, err = c.ListVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, videos, 4)
}

func TestShareVideo(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	v, err := c.AddVideo(ctx, fakeVideo(0))
	require.NoError(t, err)

	share, err := c.ShareVideo(ctx, v.ID, DefaultShareHours, now)
	require.NoError(t, err)
	assert.True(t, share.ExpiresAt.Equal(now.Add(24*time.Hour)), "expires at %v", share.ExpiresAt)

	got, err := c.ResolveShare(ctx, share.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = c.ShareVideo(ctx, v.ID, 0, now)
	assert.ErrorIs(t, err, ErrInvalidExpiry)
	_, err = c.ShareVideo(ctx, v.ID, MaxShareHours+1, now)
	assert.ErrorIs(t, err, ErrInvalidExpiry)
	_, err = c.ShareVideo(ctx, "missing", 1, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveExpiredShareDeletesIt(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	v, err := c.AddVideo(ctx, fakeVideo(0))
	require.NoError(t, err)
	share, err := c.ShareVideo(ctx, v.ID, 1, now)
	require.NoError(t, err)

	_, err = c.ResolveShare(ctx, share.ID, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrShareExpired)

	n, err := c.CountShares(ctx, v.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.ResolveShare(ctx, share.ID, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteVideoCascadesToShares(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	now := time.Now()

	v, err := c.AddVideo(ctx, fakeVideo(0))
	require.NoError(t, err)
	for range 3 {
		_, err := c.ShareVideo(ctx, v.ID, gofakeit.Number(1, MaxShareHours), now)
		require.NoError(t, err)
	}

	n, err := c.CountShares(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, c.DeleteVideo(ctx, v.ID))

	n, err = c.CountShares(ctx, v.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistryDeclaresParentsFirst(t *testing.T) {
	assert.Equal(t, []string{TableVideos, TableSharedLinks}, Registry().Names())
}
