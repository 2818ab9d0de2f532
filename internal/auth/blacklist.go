package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked session ids until they would have expired
type Blacklist interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisBlacklist stores revoked session ids in Redis. With no client it
// revokes nothing, which is the development setup.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist wraps a Redis client; client may be nil
func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

// NewRedisClient connects to Redis from a redis:// URL or a host:port address
func NewRedisClient(ctx context.Context, uri string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(uri, "://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis uri: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: uri}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func blacklistKey(id string) string {
	return "readiness:blacklist:" + id
}

// Revoke marks id as revoked for ttl
func (b *RedisBlacklist) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Set(ctx, blacklistKey(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist session: %w", err)
	}
	return nil
}

// IsRevoked reports whether id has been revoked
func (b *RedisBlacklist) IsRevoked(ctx context.Context, id string) (bool, error) {
	if b.client == nil {
		return false, nil
	}
	_, err := b.client.Get(ctx, blacklistKey(id)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return true, nil
}
