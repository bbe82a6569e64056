package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/ledger"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "igwarmup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAsLedgerBackend(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newTestStore(t), zap.NewNop())

	ok, err := l.Contains(ctx, "AbC123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Record(ctx, "AbC123"))
	require.NoError(t, l.Record(ctx, "AbC123"), "recording twice is idempotent")

	ok, err = l.Contains(ctx, "AbC123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchedPostHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	latest, err := s.LatestFetchedPost(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := &types.ExtractedPost{PostURL: "https://www.platform.example/p/A/", PostCode: "A", MediaType: types.MediaImage,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	second := &types.ExtractedPost{PostURL: "https://www.platform.example/p/B/", PostCode: "B", PostID: "42",
		Caption: "hello", MediaURL: "https://cdn.example/b.mp4", MediaType: types.MediaVideo,
		Timestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, s.SaveFetchedPost(ctx, "alice", "api", first))
	require.NoError(t, s.SaveFetchedPost(ctx, "alice", "browser", second))
	require.Error(t, s.SaveFetchedPost(ctx, "alice", "api", &types.ExtractedPost{}))

	latest, err = s.LatestFetchedPost(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "browser", latest.Backend)
	assert.Equal(t, "B", latest.Post.PostCode)
	assert.Equal(t, "42", latest.Post.PostID)
	assert.Equal(t, types.MediaVideo, latest.Post.MediaType)
	assert.True(t, second.Timestamp.Equal(latest.Post.Timestamp))
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	older := &Run{ID: uuid.NewString(), Action: "like-story", Subject: "alice", Success: true, Message: "ok",
		StartedAt: base, Duration: 1500 * time.Millisecond}
	newer := &Run{ID: uuid.NewString(), Action: "post-comment", Subject: "AbC123", Kind: "DuplicateActionError",
		Message: "Already commented on this post", StartedAt: base.Add(time.Minute), Duration: 2 * time.Millisecond}
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, newer))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, "DuplicateActionError", runs[0].Kind)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.True(t, runs[1].Success)
}

func TestPostCacheRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "posts")
	post := &types.ExtractedPost{PostURL: "https://www.platform.example/p/C/", PostCode: "C", Caption: "c"}

	path, err := SavePostCache(dir, "alice", post, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alice_2026-02-01T09-00-00.json"), path)

	loaded, err := LoadPostCache(path)
	require.NoError(t, err)
	assert.Equal(t, post.PostURL, loaded.PostURL)
	assert.Equal(t, post.Caption, loaded.Caption)
}
