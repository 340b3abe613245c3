// Package redisstore keeps refresh sessions in Redis so every backend
// instance can validate tokens issued by any other.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"candidate-collab/internal/entity"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

type RefreshSessionRepository struct {
	client *redis.Client
	prefix string
}

// NewRefreshSessionRepository connects to redisURL and checks it is reachable.
func NewRefreshSessionRepository(redisURL string) (*RefreshSessionRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRefreshSessionRepositoryWithClient(client), nil
}

func NewRefreshSessionRepositoryWithClient(client *redis.Client) *RefreshSessionRepository {
	return &RefreshSessionRepository{
		client: client,
		prefix: "refresh:",
	}
}

func (r *RefreshSessionRepository) key(tokenHash string) string {
	return r.prefix + tokenHash
}

func (r *RefreshSessionRepository) Save(ctx context.Context, session *entity.RefreshSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = defaultTTL
	}

	if err := r.client.Set(ctx, r.key(session.TokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (r *RefreshSessionRepository) Find(ctx context.Context, tokenHash string) (*entity.RefreshSession, error) {
	raw, err := r.client.Get(ctx, r.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh session: %w", err)
	}

	var session entity.RefreshSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal refresh session: %w", err)
	}
	session.TokenHash = tokenHash
	return &session, nil
}

func (r *RefreshSessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	if err := r.client.Del(ctx, r.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (r *RefreshSessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RefreshSessionRepository) Close() error {
	return r.client.Close()
}
