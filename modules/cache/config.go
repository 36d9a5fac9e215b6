package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds cache configuration.
type Config struct {
	RedisAddr string
	Prefix    string
	TTL       time.Duration
}

// DefaultConfig returns the default cache configuration. An empty
// RedisAddr disables the cache.
func DefaultConfig() Config {
	return Config{
		Prefix: "chat:",
		TTL:    5 * time.Minute,
	}
}

// ConfigFromEnv reads CHAT_REDIS_ADDR and CHAT_HISTORY_CACHE_TTL.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.RedisAddr = os.Getenv("CHAT_REDIS_ADDR")
	if ttl := os.Getenv("CHAT_HISTORY_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.TTL = d
		}
	}
	return cfg
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool {
	return c.RedisAddr != ""
}

// Connect creates a Redis client and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", cfg.RedisAddr, cfg.Prefix, cfg.TTL)
	return client, nil
}
