package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "session:"

// RedisRepository keeps each session in a hash under <prefix><refreshToken>
// that Redis expires at the session's ExpiresAt.
type RedisRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRepository uses "session:" when prefix is empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(refresh string) string {
	return r.prefix + refresh
}

// Create stores s. The refresh token doubles as the session id.
func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	if s.CreatedAt == nil {
		now := r.now().UTC()
		s.CreatedAt = &now
	}
	s.ID = s.RefreshToken

	ttl := s.ExpiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	key := r.key(s.RefreshToken)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"sub", s.Sub,
			"deviceHash", s.DeviceHash,
			"createdAt", s.CreatedAt.Format(time.RFC3339Nano),
			"expiresAt", s.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	h, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	s := &Session{RefreshToken: refresh, Sub: h["sub"], DeviceHash: h["deviceHash"]}
	s.ID = refresh
	created, err := time.Parse(time.RFC3339Nano, h["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("session createdAt: %w", err)
	}
	s.CreatedAt = &created
	if s.ExpiresAt, err = time.Parse(time.RFC3339Nano, h["expiresAt"]); err != nil {
		return nil, fmt.Errorf("session expiresAt: %w", err)
	}
	return s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}
