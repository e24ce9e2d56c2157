package sweep

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianozunino/vanish/internal/blob"
	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/index"
	"github.com/marianozunino/vanish/internal/model"
)

func setupTestSweeper(t *testing.T) (*Sweeper, *blob.FSStore, *index.Index, string) {
	t.Helper()

	dir := t.TempDir()

	cfg := &config.Config{
		MaxSize:        6.0,
		RetentionHours: 24,
		SweepInterval:  60,
		IDLength:       16,
		UploadPath:     dir,
		SQLitePath:     filepath.Join(dir, "test.db"),
		Storage:        config.StorageFS,
	}

	blobs, err := blob.NewFSStore(dir)
	require.NoError(t, err)

	ix, err := index.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	return New(cfg, blobs, ix), blobs, ix, dir
}

// seedShare writes a blob and a matching record whose expiry lies at the
// given offset from now.
func seedShare(t *testing.T, blobs *blob.FSStore, ix *index.Index, token string, expiresIn time.Duration) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, token, strings.NewReader("content-"+token), int64(8+len(token))))

	now := time.Now()
	rec := model.ShareRecord{
		Token:       token,
		Filename:    token + ".txt",
		ContentType: "text/plain",
		SizeBytes:   int64(8 + len(token)),
		CreatedAt:   now.Add(expiresIn - 24*time.Hour),
		ExpiresAt:   now.Add(expiresIn),
		Status:      model.StatusActive,
	}
	require.NoError(t, ix.Put(&rec))
}

func backdateBlob(t *testing.T, dir, token string, age time.Duration) {
	t.Helper()

	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(dir, token), old, old))
}

func TestSweepRemovesExpiredShares(t *testing.T) {
	s, blobs, ix, _ := setupTestSweeper(t)
	ctx := context.Background()

	seedShare(t, blobs, ix, "expired1", -time.Hour)
	seedShare(t, blobs, ix, "expired2", -time.Minute)
	seedShare(t, blobs, ix, "live1", time.Hour)

	require.NoError(t, s.RunSweepOnce(ctx))

	// Expired blobs are gone, their records tombstoned
	for _, token := range []string{"expired1", "expired2"} {
		_, err := blobs.Get(ctx, token)
		assert.ErrorIs(t, err, blob.ErrBlobNotFound, token)

		rec, err := ix.Get(token)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDeleted, rec.Status, token)
	}

	// The live share is untouched
	rc, err := blobs.Get(ctx, "live1")
	require.NoError(t, err)
	rc.Close()

	rec, err := ix.Get("live1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, rec.Status)
}

func TestSweepIdempotent(t *testing.T) {
	s, blobs, ix, _ := setupTestSweeper(t)
	ctx := context.Background()

	seedShare(t, blobs, ix, "once", -time.Hour)
	seedShare(t, blobs, ix, "keep", time.Hour)

	require.NoError(t, s.RunSweepOnce(ctx))

	recsAfterFirst, err := ix.Scan(func(model.ShareRecord) bool { return true })
	require.NoError(t, err)
	objsAfterFirst, err := blobs.List(ctx)
	require.NoError(t, err)

	// Second pass with no new expirations changes nothing and errs nothing
	require.NoError(t, s.RunSweepOnce(ctx))

	recsAfterSecond, err := ix.Scan(func(model.ShareRecord) bool { return true })
	require.NoError(t, err)
	objsAfterSecond, err := blobs.List(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, recsAfterFirst, recsAfterSecond)
	assert.Equal(t, len(objsAfterFirst), len(objsAfterSecond))
}

func TestSweepToleratesAlreadyMissingBlob(t *testing.T) {
	s, blobs, ix, _ := setupTestSweeper(t)
	ctx := context.Background()

	seedShare(t, blobs, ix, "halfgone", -time.Hour)
	require.NoError(t, blobs.Delete(ctx, "halfgone"))

	require.NoError(t, s.RunSweepOnce(ctx))

	rec, err := ix.Get("halfgone")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, rec.Status)
}

func TestOrphanBlobRemovedAfterRetentionWindow(t *testing.T) {
	s, blobs, _, dir := setupTestSweeper(t)
	ctx := context.Background()

	// Blob without any record: the upload crashed before its metadata
	// write. Backdate it past the retention window.
	require.NoError(t, blobs.Put(ctx, "orphan", strings.NewReader("lost"), 4))
	backdateBlob(t, dir, "orphan", 25*time.Hour)

	require.NoError(t, s.RunSweepOnce(ctx))

	_, err := blobs.Get(ctx, "orphan")
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
}

func TestYoungOrphanBlobLeftUntouched(t *testing.T) {
	s, blobs, _, _ := setupTestSweeper(t)
	ctx := context.Background()

	// A fresh unreferenced blob may belong to an upload whose metadata
	// write has not landed yet.
	require.NoError(t, blobs.Put(ctx, "inflight", strings.NewReader("new"), 3))

	require.NoError(t, s.RunSweepOnce(ctx))

	rc, err := blobs.Get(ctx, "inflight")
	require.NoError(t, err)
	rc.Close()
}

func TestOldBlobWithActiveRecordKept(t *testing.T) {
	s, blobs, ix, dir := setupTestSweeper(t)
	ctx := context.Background()

	// An old blob is not an orphan while an active record references it
	seedShare(t, blobs, ix, "longlived", time.Hour)
	backdateBlob(t, dir, "longlived", 30*time.Hour)

	require.NoError(t, s.RunSweepOnce(ctx))

	rc, err := blobs.Get(ctx, "longlived")
	require.NoError(t, err)
	rc.Close()
}

func TestTombstonePurgedOneWindowPastExpiry(t *testing.T) {
	s, _, ix, _ := setupTestSweeper(t)
	ctx := context.Background()

	now := time.Now()

	stale := model.ShareRecord{
		Token:     "ancient",
		CreatedAt: now.Add(-72 * time.Hour),
		ExpiresAt: now.Add(-48 * time.Hour),
		Status:    model.StatusDeleted,
	}
	require.NoError(t, ix.Put(&stale))

	fresh := model.ShareRecord{
		Token:     "recent",
		CreatedAt: now.Add(-25 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		Status:    model.StatusDeleted,
	}
	require.NoError(t, ix.Put(&fresh))

	require.NoError(t, s.RunSweepOnce(ctx))

	// The old tombstone is physically gone
	_, err := ix.Get("ancient")
	assert.ErrorIs(t, err, index.ErrRecordNotFound)

	// The recent one still answers "expired" to late readers
	rec, err := ix.Get("recent")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, rec.Status)
}

func TestRunSweepOnceRefusesOverlap(t *testing.T) {
	s, _, _, _ := setupTestSweeper(t)

	require.True(t, s.running.TryLock())
	defer s.running.Unlock()

	err := s.RunSweepOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

func TestSweeperStartStop(t *testing.T) {
	s, blobs, ix, _ := setupTestSweeper(t)

	seedShare(t, blobs, ix, "startstop", -time.Hour)

	s.Start()

	// The initial pass fires on start
	assert.Eventually(t, func() bool {
		rec, err := ix.Get("startstop")
		return err == nil && rec.Status == model.StatusDeleted
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	// Stop is safe to call again
	s.Stop()
}
