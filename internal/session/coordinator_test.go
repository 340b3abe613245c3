package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"candidate-collab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitReturnsNewerTokenWithoutRefreshing(t *testing.T) {
	var calls atomic.Int32
	coord := NewCoordinator(NewMemoryStore(), func(ctx context.Context, refreshToken string) (Tokens, error) {
		calls.Add(1)
		return Tokens{AccessToken: "never"}, nil
	})
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t2", RefreshToken: "r"}))

	token, err := coord.Await(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, "t2", token)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefreshTimeoutInvalidates(t *testing.T) {
	notifier := &RecordingNotifier{}
	coord := NewCoordinator(NewMemoryStore(), func(ctx context.Context, refreshToken string) (Tokens, error) {
		<-ctx.Done()
		return Tokens{}, networkError(ctx.Err())
	}, WithRefreshTimeout(30*time.Millisecond), WithNotifier(notifier))
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1", RefreshToken: "r"}))

	_, err := coord.Await(context.Background(), "t1")

	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, []string{"Session expired. Please log in again."}, notifier.Messages())
	assert.Equal(t, StateIdle, coord.State())
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	store := NewMemoryStore()
	coord := NewCoordinator(store, func(ctx context.Context, refreshToken string) (Tokens, error) {
		assert.Equal(t, "r1", refreshToken)
		return Tokens{AccessToken: "t2", RefreshToken: "r2"}, nil
	})
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1", RefreshToken: "r1"}))

	token, err := coord.Await(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t2", token)

	stored, _ := store.Load(context.Background())
	assert.Equal(t, Credentials{AccessToken: "t2", RefreshToken: "r2"}, stored)
}

func TestWaiterContextCancellation(t *testing.T) {
	release := make(chan struct{})
	coord := NewCoordinator(NewMemoryStore(), func(ctx context.Context, refreshToken string) (Tokens, error) {
		<-release
		return Tokens{AccessToken: "t2"}, nil
	})
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1", RefreshToken: "r"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.Await(ctx, "t1")
	assert.True(t, errors.Is(err, ErrNetwork))

	// The refresh keeps running for everyone else.
	close(release)
	require.Eventually(t, func() bool { return coord.AccessToken() == "t2" }, time.Second, 5*time.Millisecond)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	var fired atomic.Int32
	notifier := &RecordingNotifier{}
	coord := NewCoordinator(store, nil, WithNotifier(notifier), OnInvalidate(func() { fired.Add(1) }))
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1", RefreshToken: "r"}))

	coord.Invalidate()
	coord.Invalidate()

	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 1, store.Clears())
	assert.Len(t, notifier.Messages(), 1)

	// A new login arms it again.
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t3", RefreshToken: "r"}))
	coord.Invalidate()
	assert.Equal(t, int32(2), fired.Load())
}

func TestMissingRefreshTokenSparesConcurrentLogin(t *testing.T) {
	login := Credentials{AccessToken: "t2", RefreshToken: "r2"}
	for i := 0; i < 200; i++ {
		coord := NewCoordinator(NewMemoryStore(), nil)
		require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1"}))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = coord.Await(context.Background(), "t1")
		}()
		require.NoError(t, coord.SetCredentials(context.Background(), login))
		<-done

		require.Equal(t, login, coord.Credentials(), "iteration %d", i)
	}
}

func TestNeverSignedInDoesNotInvalidate(t *testing.T) {
	var fired atomic.Int32
	notifier := &RecordingNotifier{}
	store := NewMemoryStore()
	coord := NewCoordinator(store, nil, WithNotifier(notifier), OnInvalidate(func() { fired.Add(1) }))

	_, err := coord.Await(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)

	coord.Invalidate()
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, store.Clears())
	assert.Empty(t, notifier.Messages())
}

func TestStaleRefreshResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	coord := NewCoordinator(NewMemoryStore(), func(ctx context.Context, refreshToken string) (Tokens, error) {
		<-release
		return Tokens{AccessToken: "from-old-session"}, nil
	})
	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "t1", RefreshToken: "r"}))

	done := make(chan string, 1)
	go func() {
		token, _ := coord.Await(context.Background(), "t1")
		done <- token
	}()
	require.Eventually(t, func() bool { return coord.State() == StateRefreshing }, time.Second, time.Millisecond)

	require.NoError(t, coord.SetCredentials(context.Background(), Credentials{AccessToken: "fresh-login", RefreshToken: "r2"}))
	assert.Equal(t, "fresh-login", <-done)

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "fresh-login", coord.AccessToken())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	creds := Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		User:         &model.UserProfile{ID: "u1", Username: "alice", Name: "Alice", Email: "alice@example.com"},
	}
	require.NoError(t, store.Save(ctx, creds))
	require.NoError(t, store.Save(ctx, Credentials{AccessToken: "a2", RefreshToken: "r", User: creds.User}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, creds.User, got.User)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Nil(t, got.User)
}

func TestCoordinatorRestore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Credentials{AccessToken: "a", RefreshToken: "r"}))

	coord := NewCoordinator(store, nil)
	require.NoError(t, coord.Restore(context.Background()))

	assert.Equal(t, "a", coord.AccessToken())
}
