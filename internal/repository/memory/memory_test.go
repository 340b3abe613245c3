package memory

import (
	"context"
	"testing"
	"time"

	"candidate-collab/internal/entity"
	"candidate-collab/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryRejectsDuplicates(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.User{Id: uuid.New(), Username: "bob", Email: "bob@example.com"}))

	err := repo.Create(ctx, &entity.User{Id: uuid.New(), Username: "BOB", Email: "other@example.com"})
	assert.ErrorIs(t, err, contract.ErrDuplicate)
	err = repo.Create(ctx, &entity.User{Id: uuid.New(), Username: "robert", Email: "Bob@Example.com"})
	assert.ErrorIs(t, err, contract.ErrDuplicate)

	u, err := repo.FindByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob", u.Username)

	missing, err := repo.FindByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNoteRepositoryOrdersThread(t *testing.T) {
	repo := NewNoteRepository()
	ctx := context.Background()
	now := time.Now()

	later := &entity.Note{Id: uuid.New(), CandidateId: "c1", Content: "second", CreatedAt: now.Add(time.Minute)}
	earlier := &entity.Note{Id: uuid.New(), CandidateId: "c1", Content: "first", CreatedAt: now}
	require.NoError(t, repo.Create(ctx, later))
	require.NoError(t, repo.Create(ctx, earlier))
	require.NoError(t, repo.Create(ctx, &entity.Note{Id: uuid.New(), CandidateId: "c2", CreatedAt: now}))
	assert.ErrorIs(t, repo.Create(ctx, earlier), contract.ErrDuplicate)

	thread, err := repo.FindByCandidate(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "first", thread[0].Content)
	assert.Equal(t, "second", thread[1].Content)
}

func TestNotificationRepositoryIsIdempotent(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()
	user, note := uuid.New(), uuid.New()

	created, err := repo.CreateIfAbsent(ctx, &entity.Notification{UserId: user, NoteId: note, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &entity.Notification{UserId: user, NoteId: note, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.MarkRead(ctx, user, note, time.Now()))
	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New(), note, time.Now()), contract.ErrNotFound)

	list, err := repo.FindByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
	assert.NotNil(t, list[0].ReadAt)
}

func TestRefreshSessionRepository(t *testing.T) {
	repo := NewRefreshSessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &entity.RefreshSession{TokenHash: "h", UserId: "u", ExpiresAt: time.Now().Add(time.Hour)}))
	s, err := repo.Find(ctx, "h")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u", s.UserId)

	require.NoError(t, repo.Revoke(ctx, "h"))
	s, err = repo.Find(ctx, "h")
	require.NoError(t, err)
	assert.Nil(t, s)
}
