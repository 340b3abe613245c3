package redisstore

import (
	"context"
	"testing"
	"time"

	"candidate-collab/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RefreshSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	repo, err := NewRefreshSessionRepository("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, s
}

func TestSaveAndFind(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	err := repo.Save(ctx, &entity.RefreshSession{
		TokenHash: "hash-1",
		UserId:    "user-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := repo.Find(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserId)
	assert.Equal(t, "hash-1", got.TokenHash)
}

func TestFindExpired(t *testing.T) {
	repo, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &entity.RefreshSession{
		TokenHash: "short",
		UserId:    "user-2",
		ExpiresAt: time.Now().Add(time.Second),
	}))
	s.FastForward(2 * time.Second)

	got, err := repo.Find(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRevoke(t *testing.T) {
	repo, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &entity.RefreshSession{TokenHash: "gone", UserId: "u", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.True(t, s.Exists("refresh:gone"))

	require.NoError(t, repo.Revoke(ctx, "gone"))
	assert.False(t, s.Exists("refresh:gone"))

	got, err := repo.Find(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBadURL(t *testing.T) {
	_, err := NewRefreshSessionRepository("not a url")
	assert.Error(t, err)
}
