package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scrapechat/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by scrapechat.
const KeyPrefix = "scrapechat:"

const pingTimeout = 3 * time.Second

var (
	// ErrCacheMiss mirrors redis.Nil for callers.
	ErrCacheMiss = redis.Nil

	errNotInitialized = errors.New("redis client not initialized")
)

// Client talks to redis with every key placed under KeyPrefix.
type Client struct {
	inner *redis.Client
}

// NewRedisClient connects using the redis section of cfg and pings once.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	rc := cfg.Redis
	if rc.Host == "" {
		rc.Host = "127.0.0.1"
	}
	if rc.Port == 0 {
		rc.Port = 6379
	}

	inner := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := inner.Ping(ctx).Err(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("redis ping %s:%d: %w", rc.Host, rc.Port, err)
	}
	return &Client{inner: inner}, nil
}

// Set stores value under name. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, name string, value any, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, KeyPrefix+name, value, ttl).Err()
}

// Get returns the value stored under name, or ErrCacheMiss.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errNotInitialized
	}
	return c.inner.Get(ctx, KeyPrefix+name).Result()
}

// Del removes the given names.
func (c *Client) Del(ctx context.Context, names ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = KeyPrefix + name
	}
	return c.inner.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
