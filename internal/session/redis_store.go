package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values; Redis expires them by TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) encode(s *models.Session) ([]byte, time.Duration, error) {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil, 0, fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, 0, fmt.Errorf("session: failed to marshal: %w", err)
	}
	return data, ttl, nil
}

func (r *RedisStore) Create(ctx context.Context, s *models.Session) error {
	data, ttl, err := r.encode(s)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, r.key(s.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	if !created {
		return models.ErrConflict
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *models.Session) error {
	data, ttl, err := r.encode(s)
	if err != nil {
		return err
	}

	updated, err := r.client.SetXX(ctx, r.key(s.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if !updated {
		return models.ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
