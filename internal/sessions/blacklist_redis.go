package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:access:"

// Blacklist remembers signed-out access tokens until they expire. Without a
// Redis client every call is a no-op.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Add blacklists token for ttl. Non-positive TTLs are ignored since the token
// is already expired.
func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if b.client == nil || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

func (b *Blacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if b.client == nil {
		return false, nil
	}
	exists, err := b.client.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
