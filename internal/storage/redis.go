package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/s33g/lumin/internal/config"
)

// Client wraps a Redis client with the key layout used by the bot
type Client struct {
	rdb  *redis.Client
	keys *Keys
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	password := ""
	if cfg.PasswordEnv != "" {
		password = os.Getenv(cfg.PasswordEnv)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return Wrap(rdb, cfg.KeyPrefix), nil
}

// Wrap uses an existing Redis client
func Wrap(rdb *redis.Client, prefix string) *Client {
	return &Client{
		rdb:  rdb,
		keys: NewKeys(prefix),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping tests the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying Redis client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Keys returns the key generator
func (c *Client) Keys() *Keys {
	return c.keys
}
