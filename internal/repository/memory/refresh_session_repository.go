package memory

import (
	"context"
	"time"

	"candidate-collab/internal/entity"

	"github.com/patrickmn/go-cache"
)

// RefreshSessionRepository keeps refresh sessions in process memory. It is the
// fallback when no Redis URL is configured; sessions do not survive a restart.
type RefreshSessionRepository struct {
	cache *cache.Cache
}

func NewRefreshSessionRepository() *RefreshSessionRepository {
	// Expired sessions are purged every 10 minutes
	c := cache.New(30*24*time.Hour, 10*time.Minute)
	return &RefreshSessionRepository{
		cache: c,
	}
}

func (r *RefreshSessionRepository) Save(ctx context.Context, session *entity.RefreshSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	r.cache.Set(session.TokenHash, session, ttl)
	return nil
}

func (r *RefreshSessionRepository) Find(ctx context.Context, tokenHash string) (*entity.RefreshSession, error) {
	if x, found := r.cache.Get(tokenHash); found {
		return x.(*entity.RefreshSession), nil
	}
	return nil, nil
}

func (r *RefreshSessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	r.cache.Delete(tokenHash)
	return nil
}
