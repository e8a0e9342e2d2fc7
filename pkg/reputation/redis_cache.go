package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zpam/spamscore/pkg/config"
)

// VerdictCache stores blocklist verdicts per domain
type VerdictCache interface {
	Get(ctx context.Context, domain string) (listed bool, found bool, err error)
	Set(ctx context.Context, domain string, listed bool) error
	Close() error
}

// RedisCache shares blocklist verdicts between processes through Redis
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	ttl := time.Hour
	if cfg.TTL != "" {
		if ttl, err = time.ParseDuration(cfg.TTL); err != nil {
			return nil, fmt.Errorf("invalid Redis TTL %q: %w", cfg.TTL, err)
		}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis connection failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "spamscore:dnsbl"
	}

	return &RedisCache{client: client, keyPrefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) key(domain string) string {
	return c.keyPrefix + ":" + domain
}

// Get returns the cached verdict for domain
func (c *RedisCache) Get(ctx context.Context, domain string) (bool, bool, error) {
	val, err := c.client.Get(ctx, c.key(domain)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// Set stores the verdict for domain with the configured TTL
func (c *RedisCache) Set(ctx context.Context, domain string, listed bool) error {
	val := "0"
	if listed {
		val = "1"
	}
	return c.client.Set(ctx, c.key(domain), val, c.ttl).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
