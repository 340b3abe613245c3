package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"candidate-collab/internal/bootstrap"
	"candidate-collab/internal/config"
	"candidate-collab/internal/dto"
	"candidate-collab/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	app *fiber.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{
			CorsAllowedOrigins: "http://localhost:3000",
			EventBus:           "memory",
		},
		Auth: config.AuthConfig{
			JWTSecret:       "server-test",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
	}
	container, err := bootstrap.NewContainer(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, container.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = container.Close()
	})
	return &harness{t: t, app: New(cfg, container).GetApp()}
}

func (h *harness) do(method, path, token string, body interface{}) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, raw
}

func (h *harness) signup(username string) dto.AuthResponse {
	h.t.Helper()
	status, raw := h.do(http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.Equal(h.t, http.StatusCreated, status, string(raw))
	var out dto.AuthResponse
	require.NoError(h.t, json.Unmarshal(raw, &out))
	return out
}

func errorBody(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, false, out["success"])
	return out
}

func TestAuthStatuses(t *testing.T) {
	h := newHarness(t)
	h.signup("alice")

	tests := []struct {
		name    string
		path    string
		body    interface{}
		status  int
		message string
	}{
		{
			name:    "duplicate email",
			path:    "/api/auth/signup",
			body:    dto.SignupRequest{Username: "alice2", Name: "A", Email: "alice@example.com", Password: "secret123"},
			status:  http.StatusConflict,
			message: "email already registered",
		},
		{
			name:   "invalid signup",
			path:   "/api/auth/signup",
			body:   dto.SignupRequest{Username: "b", Name: "B", Email: "nope", Password: "secret123"},
			status: http.StatusBadRequest,
		},
		{
			name:    "wrong password",
			path:    "/api/auth/login",
			body:    dto.LoginRequest{Email: "alice@example.com", Password: "wrong"},
			status:  http.StatusUnauthorized,
			message: "invalid email or password",
		},
		{
			name:   "unknown refresh token",
			path:   "/api/auth/refresh",
			body:   dto.RefreshRequest{RefreshToken: "stale"},
			status: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := h.do(http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.status, status)
			body := errorBody(t, raw)
			assert.Equal(t, float64(tt.status), body["code"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("alice")

	status, raw := h.do(http.MethodPost, "/api/auth/refresh", "", dto.RefreshRequest{RefreshToken: alice.RefreshToken})
	require.Equal(t, http.StatusOK, status, string(raw))
	var refreshed dto.RefreshResponse
	require.NoError(t, json.Unmarshal(raw, &refreshed))

	status, _ = h.do(http.MethodGet, "/api/users/me", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodPost, "/api/auth/logout", "", dto.LogoutRequest{RefreshToken: alice.RefreshToken})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = h.do(http.MethodPost, "/api/auth/refresh", "", dto.RefreshRequest{RefreshToken: alice.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMalformedBodyIsRejected(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/auth/refresh", "/api/auth/logout"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte("{")))
			req.Header.Set("Content-Type", "application/json")
			resp, err := h.app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Invalid request body", errorBody(t, raw)["message"])
		})
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/users", "/api/users/me", "/api/notes/cand-1", "/api/notifications"} {
		t.Run(path, func(t *testing.T) {
			status, raw := h.do(http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Missing token", errorBody(t, raw)["message"])
		})
	}

	status, _ := h.do(http.MethodGet, "/api/ws?token=garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestNoteMentionBecomesNotification(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("alice")
	bob := h.signup("bob")

	status, raw := h.do(http.MethodPost, "/api/notes", alice.AccessToken, dto.CreateNoteRequest{
		CandidateId: "cand-1",
		Content:     "@bob thoughts?",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var note model.Note
	require.NoError(t, json.Unmarshal(raw, &note))
	assert.Equal(t, "alice", note.SenderUsername)

	status, raw = h.do(http.MethodGet, "/api/notes/cand-1", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	var thread []model.Note
	require.NoError(t, json.Unmarshal(raw, &thread))
	assert.Equal(t, []model.Note{note}, thread)

	var records []model.NotificationRecord
	require.Eventually(t, func() bool {
		status, raw := h.do(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
		if status != http.StatusOK || json.Unmarshal(raw, &records) != nil {
			return false
		}
		return len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, note.ID, records[0].NoteID)
	assert.False(t, records[0].IsRead)

	status, _ = h.do(http.MethodPatch, "/api/notifications/"+note.ID+"/read", bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPatch, "/api/notifications/"+note.ID+"/read", bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodPatch, "/api/notifications/"+note.ID+"/read", alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(http.MethodPatch, "/api/notifications/not-a-uuid/read", bob.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "collab_hub_notes_created_total 1")
	assert.Contains(t, string(raw), `collab_hub_events_emitted_total{event="notify"} 1`)
}

func TestDirectoryListsUsers(t *testing.T) {
	h := newHarness(t)
	bob := h.signup("bob")
	h.signup("alice")

	status, raw := h.do(http.MethodGet, "/api/users", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	var users []model.DirectoryEntry
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, bob.User.ID, users[1].ID)
}
