package contract

import (
	"context"

	"candidate-collab/internal/entity"
)

// RefreshSessionRepository stores issued refresh tokens by hash. Find returns
// (nil, nil) for unknown, revoked or expired tokens.
type RefreshSessionRepository interface {
	Save(ctx context.Context, session *entity.RefreshSession) error
	Find(ctx context.Context, tokenHash string) (*entity.RefreshSession, error)
	Revoke(ctx context.Context, tokenHash string) error
}
