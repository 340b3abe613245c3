package service

import (
	"context"
	"sort"

	"candidate-collab/internal/model"
	"candidate-collab/internal/repository/contract"

	"github.com/google/uuid"
)

type IUserService interface {
	// Users is the directory used for mention matching, sorted by username.
	Users(ctx context.Context) ([]model.DirectoryEntry, error)
	Profile(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
}

type userService struct {
	users contract.UserRepository
}

func NewUserService(users contract.UserRepository) IUserService {
	return &userService{users: users}
}

func (s *userService) Users(ctx context.Context) ([]model.DirectoryEntry, error) {
	all, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.DirectoryEntry, 0, len(all))
	for _, u := range all {
		out = append(out, model.DirectoryEntry{ID: u.Id.String(), Username: u.Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *userService) Profile(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	p := toProfile(u)
	return &p, nil
}
