package session

import (
	"context"
	"net/http"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/model"
)

// Login signs in with email and password and stores the returned session.
// A rejected login stores nothing.
func (t *Transport) Login(ctx context.Context, email, password string) (*model.UserProfile, error) {
	return t.authenticate(ctx, "/auth/login", dto.LoginRequest{Email: email, Password: password})
}

func (t *Transport) Signup(ctx context.Context, req dto.SignupRequest) (*model.UserProfile, error) {
	return t.authenticate(ctx, "/auth/signup", req)
}

func (t *Transport) authenticate(ctx context.Context, path string, body interface{}) (*model.UserProfile, error) {
	resp, err := t.Execute(ctx, Operation{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Public: true,
	})
	if err != nil {
		return nil, err
	}

	var out dto.AuthResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}

	user := out.User
	err = t.coord.SetCredentials(ctx, Credentials{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		User:         &user,
	})
	if err != nil {
		return nil, err
	}

	t.log.Info("SESSION", "Signed in", map[string]interface{}{"user_id": user.ID})
	return &user, nil
}

// Logout revokes the refresh session on the server when possible and always
// clears local credentials.
func (t *Transport) Logout(ctx context.Context) error {
	creds := t.coord.Credentials()
	if creds.RefreshToken != "" {
		_, err := t.Execute(ctx, Operation{
			Method: http.MethodPost,
			Path:   "/auth/logout",
			Body:   dto.LogoutRequest{RefreshToken: creds.RefreshToken},
			Public: true,
		})
		if err != nil {
			t.log.Warn("SESSION", "Server logout failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return t.coord.SignOut(ctx)
}

// CurrentUser is the profile stored with the session, nil when signed out.
func (t *Transport) CurrentUser() *model.UserProfile {
	return t.coord.Credentials().User
}
