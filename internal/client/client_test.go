package client_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"candidate-collab/internal/bootstrap"
	"candidate-collab/internal/client"
	"candidate-collab/internal/config"
	"candidate-collab/internal/dto"
	"candidate-collab/internal/model"
	"candidate-collab/internal/notestream"
	"candidate-collab/internal/realtime"
	"candidate-collab/internal/server"
	"candidate-collab/internal/session"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	container *bootstrap.Container
	clientCfg config.ClientConfig
}

func startBackend(t *testing.T, accessTTL time.Duration) *backend {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{
			Environment:        "test",
			CorsAllowedOrigins: "http://localhost:3000",
			EventBus:           "memory",
		},
		Auth: config.AuthConfig{
			JWTSecret:       "e2e-secret",
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: time.Hour,
		},
	}

	container, err := bootstrap.NewContainer(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, container.Start(ctx))

	srv := server.New(cfg, container)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)

	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
		_ = container.Close()
	})

	addr := ln.Addr().String()
	return &backend{
		container: container,
		clientCfg: config.ClientConfig{
			APIBaseURL:     "http://" + addr + "/api",
			WebsocketURL:   "ws://" + addr + "/api/ws",
			RequestTimeout: 5 * time.Second,
			RefreshTimeout: 5 * time.Second,
			DirectoryTTL:   time.Minute,
		},
	}
}

func (b *backend) signup(t *testing.T, username string, opts ...client.Option) *client.Client {
	t.Helper()
	opts = append(opts, client.WithReconnectBackoff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(20 * time.Millisecond)
	}))
	c := client.New(b.clientCfg, opts...)
	_, err := c.Signup(context.Background(), dto.SignupRequest{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return c
}

func run(t *testing.T, c *client.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("client did not stop")
		}
	})
}

func TestMentionNotifiesOnceAcrossClients(t *testing.T) {
	b := startBackend(t, time.Minute)
	hub := b.container.WebSocketHub

	alice := b.signup(t, "alice")

	var (
		mu          sync.Mutex
		unreadSeen  []int
		mentionedBy []string
	)
	bob := b.signup(t, "bob")
	bob.Notifications.OnUnreadChange(func(unread int) {
		mu.Lock()
		defer mu.Unlock()
		unreadSeen = append(unreadSeen, unread)
	})

	aliceThread, err := alice.OpenThread(context.Background(), "cand-1")
	require.NoError(t, err)
	defer aliceThread.Close()
	bobThread, err := bob.OpenThread(context.Background(), "cand-1",
		notestream.OnMention(func(n model.Note) {
			mu.Lock()
			defer mu.Unlock()
			mentionedBy = append(mentionedBy, n.SenderUsername)
		}),
	)
	require.NoError(t, err)
	defer bobThread.Close()

	run(t, alice)
	run(t, bob)

	require.Eventually(t, func() bool {
		return hub.Members("cand-1") == 2 && hub.Members(bob.User().ID) == 1 && hub.Members(alice.User().ID) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, alice.SendNote("cand-1", "@bob can you review the take-home?"))

	require.Eventually(t, func() bool { return bob.Notifications.Unread() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(aliceThread.Notes()) == 1 && len(bobThread.Notes()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Give any duplicate delivery time to show up.
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1}, unreadSeen)
	assert.Equal(t, []string{"alice"}, mentionedBy)
	mu.Unlock()
	assert.Equal(t, 1, bob.Notifications.Unread())
	assert.Equal(t, 0, alice.Notifications.Unread())

	records := bob.Notifications.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].SenderUsername)
	assert.Equal(t, "cand-1", records[0].CandidateID)
	assert.Equal(t, bobThread.Notes()[0].ID, records[0].NoteID)
	assert.Equal(t, aliceThread.Notes(), bobThread.Notes())

	unread, err := bob.Notifications.MarkRead(context.Background(), records[0].NoteID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	fresh, err := bob.API.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.True(t, fresh[0].IsRead)
}

func TestPersonalRoomOfAnotherUserIsRefused(t *testing.T) {
	b := startBackend(t, time.Minute)
	hub := b.container.WebSocketHub

	alice := b.signup(t, "alice")
	bob := b.signup(t, "bob")

	alice.Channel.JoinRoom(bob.User().ID)
	run(t, alice)

	require.Eventually(t, func() bool { return hub.Members(alice.User().ID) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Members(bob.User().ID))
}

func TestWrongPasswordStoresNothing(t *testing.T) {
	b := startBackend(t, time.Minute)
	b.signup(t, "alice")

	store := session.NewMemoryStore()
	notifier := &session.RecordingNotifier{}
	c := client.New(b.clientCfg, client.WithCredentialStore(store), client.WithNotifier(notifier))

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrUnauthenticated))
	assert.Nil(t, c.User())
	assert.Equal(t, 0, store.Saves())
	assert.Equal(t, []string{"invalid email or password"}, notifier.Messages())
}

func TestExpiredAccessTokenIsRepaired(t *testing.T) {
	b := startBackend(t, 3*time.Second)
	var invalidated atomic.Int32

	alice := b.signup(t, "alice")
	alice.Coordinator.OnInvalidate(func() { invalidated.Add(1) })
	before := alice.Coordinator.AccessToken()

	time.Sleep(4 * time.Second)

	users, err := alice.API.Users(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.NotEqual(t, before, alice.Coordinator.AccessToken())
	assert.Equal(t, int32(0), invalidated.Load())
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	b := startBackend(t, time.Minute)

	_, err := realtime.NewWebsocketDialer(b.clientCfg.WebsocketURL).Dial(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, realtime.ErrHandshakeUnauthorized)
}
