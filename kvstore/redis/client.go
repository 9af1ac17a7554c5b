// Package redis implements kvstore.Store on top of go-redis.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayska/apiclient/kvstore"
)

// Client implements kvstore.Store using Redis as the backend.
type Client struct {
	client *redis.Client
	config *Config
	closed atomic.Bool
}

var _ kvstore.Store = (*Client)(nil)

// NewClient validates cfg, connects and pings the server.
func NewClient(cfg *Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, kvstore.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Client{client: client, config: cfg}, nil
}

// Get returns kvstore.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, kvstore.ErrClosed
	}

	result, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewOperationError("get", key, err)
	}
	return result, nil
}

// Set stores value without expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if c.closed.Load() {
		return kvstore.ErrClosed
	}

	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return kvstore.NewOperationError("set", key, err)
	}
	return nil
}

// Delete removes keys in a single DEL command.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c.closed.Load() {
		return kvstore.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return kvstore.NewOperationError("delete", keys[0], err)
	}
	return nil
}

// Health checks connectivity with PING.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return kvstore.ErrClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return kvstore.NewConnectionError("ping", c.config.Address(), err)
	}
	return nil
}

// Close closes the Redis client. Calling it twice returns kvstore.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return kvstore.ErrClosed
	}
	return c.client.Close()
}
