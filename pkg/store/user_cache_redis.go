package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultUserCachePrefix = "messagecrud:identity"

// RedisUserCache keeps token-reference to user-id mappings in Redis with TTL.
type RedisUserCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisUserCache builds a Redis-backed user cache.
func NewRedisUserCache(addr, password string, ttl time.Duration) (*RedisUserCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("user cache redis addr is required")
	}
	if ttl <= 0 {
		return nil, errors.New("user cache requires positive ttl")
	}
	return &RedisUserCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: defaultUserCachePrefix,
		ttl:    ttl,
	}, nil
}

// GetUserID returns a cached user id. A miss is ("", false, nil).
func (c *RedisUserCache) GetUserID(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	id, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// SetUserID caches a user id until the TTL expires.
func (c *RedisUserCache) SetUserID(ctx context.Context, key, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Set(ctx, c.key(key), userID, c.ttl).Err()
}

func (c *RedisUserCache) key(key string) string {
	return c.prefix + ":" + key
}
