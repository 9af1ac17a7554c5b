package redis

import (
	"fmt"
	"time"

	"github.com/ayska/apiclient/kvstore"
)

// Config holds Redis connection options for the token key-value store.
type Config struct {
	Host string
	// Port defaults to 6379 when zero.
	Port int
	// Password should come from the environment (TOKENSTORE_REDIS_PASSWORD).
	Password string //nolint:gosec // config field
	// Database must be 0-15.
	Database int
	// PoolSize defaults to 10 when zero.
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 6379
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Validate performs fail-fast validation of Redis configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return kvstore.NewConfigError("redis.host", "host is required", nil)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return kvstore.NewConfigError("redis.port", fmt.Sprintf("invalid port: %d", c.Port), nil)
	}
	if c.Database < 0 || c.Database > 15 {
		return kvstore.NewConfigError("redis.database", fmt.Sprintf("invalid database number: %d (must be 0-15)", c.Database), nil)
	}
	if c.PoolSize < 0 {
		return kvstore.NewConfigError("redis.poolsize", fmt.Sprintf("invalid pool size: %d", c.PoolSize), nil)
	}
	if c.DialTimeout < 0 {
		return kvstore.NewConfigError("redis.dialtimeout", "dial timeout cannot be negative", nil)
	}
	return nil
}

// Address returns the Redis server address in "host:port" format.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
