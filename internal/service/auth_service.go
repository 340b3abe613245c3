package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/entity"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/repository/contract"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	users      contract.UserRepository
	sessions   contract.RefreshSessionRepository
	tokens     *serverutils.TokenIssuer
	refreshTTL time.Duration
	logger     logger.ILogger
}

func NewAuthService(users contract.UserRepository, sessions contract.RefreshSessionRepository, tokens *serverutils.TokenIssuer, refreshTTL time.Duration, log logger.ILogger) IAuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		logger:     log,
	}
}

func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	existing, err = s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Id:           uuid.New(),
		Username:     req.Username,
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, contract.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("AUTH", "User signed up", map[string]interface{}{"user_id": user.Id, "username": user.Username})
	return s.issue(ctx, user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh trades a live refresh token for a new access token. The refresh
// token itself stays valid until it expires or is revoked.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	session, err := s.sessions.Find(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(session.UserId)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	access, err := s.tokens.Issue(user.Id.String(), user.Username)
	if err != nil {
		return nil, err
	}
	return &dto.RefreshResponse{AccessToken: access}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, hashToken(refreshToken))
}

func (s *authService) issue(ctx context.Context, user *entity.User) (*dto.AuthResponse, error) {
	access, err := s.tokens.Issue(user.Id.String(), user.Username)
	if err != nil {
		return nil, err
	}

	rawRefreshToken := uuid.New().String()
	now := time.Now()
	err = s.sessions.Save(ctx, &entity.RefreshSession{
		TokenHash: hashToken(rawRefreshToken),
		UserId:    user.Id.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &dto.AuthResponse{
		User:         toProfile(user),
		AccessToken:  access,
		RefreshToken: rawRefreshToken,
	}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func toProfile(u *entity.User) model.UserProfile {
	return model.UserProfile{
		ID:       u.Id.String(),
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}
}
