// Package cache provides a Redis cache-aside layer for room history reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Gateway is the message store the cache sits in front of.
type Gateway interface {
	StoreMessage(ctx context.Context, roomID string, sender user.Identity, body string) (*chat.Message, error)
	FetchHistory(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error)
}

// Stats tracks cache statistics.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Invalidations uint64 `json:"invalidations"`
	Errors        uint64 `json:"errors"`
}

// HistoryCache caches history windows per room, limit and order. Keys carry
// a per-room generation that every write bumps, so a window read before a
// write can only be stored under a key no later read uses. Redis failures
// fall back to the gateway.
type HistoryCache struct {
	next   Gateway
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	stats  Stats
}

// NewHistoryCache wraps next with a Redis cache.
func NewHistoryCache(next Gateway, client *redis.Client, prefix string, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		next:   next,
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// StoreMessage stores the message and invalidates the room's cached history.
func (c *HistoryCache) StoreMessage(ctx context.Context, roomID string, sender user.Identity, body string) (*chat.Message, error) {
	msg, err := c.next.StoreMessage(ctx, roomID, sender, body)
	if err != nil {
		return nil, err
	}
	// The message is stored; the generation must move even if the caller
	// has gone away.
	if err := c.Invalidate(context.WithoutCancel(ctx), roomID); err != nil {
		log.Printf("[cache] Warning: failed to invalidate history for room %s: %v", roomID, err)
	}
	return msg, nil
}

// FetchHistory serves history from Redis when cached. Concurrent misses for
// the same window share one gateway read, detached from the cancellation of
// whichever caller started it.
func (c *HistoryCache) FetchHistory(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error) {
	limit = store.ClampHistoryLimit(limit)

	gen, err := c.generation(ctx, roomID)
	if err != nil {
		log.Printf("[cache] Warning: %v, reading from store", err)
		return c.next.FetchHistory(ctx, roomID, limit, order)
	}
	key := c.key(roomID, gen, limit, order)

	var cached []chat.Message
	found, err := c.get(ctx, key, &cached)
	if err != nil {
		log.Printf("[cache] Warning: %v, reading from store", err)
	}
	if found {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		readCtx := context.WithoutCancel(ctx)
		messages, err := c.next.FetchHistory(readCtx, roomID, limit, order)
		if err != nil {
			return nil, err
		}
		if err := c.set(readCtx, key, messages); err != nil {
			log.Printf("[cache] Warning: %v", err)
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]chat.Message), nil
}

// Invalidate bumps the room's generation and removes its cached windows.
func (c *HistoryCache) Invalidate(ctx context.Context, roomID string) error {
	if err := c.client.Incr(ctx, c.generationKey(roomID)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache generation error: %w", err)
	}

	pattern := c.prefix + "history:" + roomID + ":*"

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			atomic.AddUint64(&c.stats.Errors, 1)
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				atomic.AddUint64(&c.stats.Errors, 1)
				return fmt.Errorf("cache delete error: %w", err)
			}
			atomic.AddUint64(&c.stats.Invalidations, uint64(len(keys)))
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetStats returns a snapshot of the cache counters.
func (c *HistoryCache) GetStats() Stats {
	return Stats{
		Hits:          atomic.LoadUint64(&c.stats.Hits),
		Misses:        atomic.LoadUint64(&c.stats.Misses),
		Sets:          atomic.LoadUint64(&c.stats.Sets),
		Invalidations: atomic.LoadUint64(&c.stats.Invalidations),
		Errors:        atomic.LoadUint64(&c.stats.Errors),
	}
}

// Ping checks the Redis connection.
func (c *HistoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *HistoryCache) key(roomID string, gen int64, limit int, order chat.HistoryOrder) string {
	return fmt.Sprintf("%shistory:%s:%d:%d:%s", c.prefix, roomID, gen, limit, order)
}

func (c *HistoryCache) generationKey(roomID string) string {
	return c.prefix + "history-gen:" + roomID
}

// generation returns the room's current generation, zero if never written.
func (c *HistoryCache) generation(ctx context.Context, roomID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(roomID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

func (c *HistoryCache) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return true, nil
}

func (c *HistoryCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}
	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}
