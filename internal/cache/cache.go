// Package cache provides the explicit get/set/evict client used for the
// per-student assignment view.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

// DefaultTTL is the absolute expiry applied to cached entries.
const DefaultTTL = 5 * time.Minute

// Client is a JSON value cache.
type Client interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Evict(ctx context.Context, keys ...string) error
}

// StudentAssignmentsKey is the cache key of a student's visible assignment list.
func StudentAssignmentsKey(studentID uint) string {
	return fmt.Sprintf("assignments:student:%d", studentID)
}

type redisClient struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis returns a Client backed by Redis. A nil client yields Disabled.
func NewRedis(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Client {
	if client == nil {
		return Disabled{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisClient{
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "assignment_cache").Logger(),
	}
}

func (c *redisClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.CacheOperations().WithLabelValues("get", "miss").Inc()
			return false, nil
		}
		observability.CacheOperations().WithLabelValues("get", "error").Inc()
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		observability.CacheOperations().WithLabelValues("get", "error").Inc()
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	observability.CacheOperations().WithLabelValues("get", "hit").Inc()
	c.logger.Debug().Str("key", key).Msg("cache hit")
	return true, nil
}

func (c *redisClient) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		observability.CacheOperations().WithLabelValues("set", "error").Inc()
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	observability.CacheOperations().WithLabelValues("set", "ok").Inc()
	return nil
}

func (c *redisClient) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		observability.CacheOperations().WithLabelValues("evict", "error").Inc()
		return fmt.Errorf("cache evict: %w", err)
	}
	observability.CacheOperations().WithLabelValues("evict", "ok").Add(float64(len(keys)))
	c.logger.Debug().Strs("keys", keys).Msg("cache evicted")
	return nil
}

// Disabled is a Client that stores nothing.
type Disabled struct{}

func (Disabled) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Disabled) Set(context.Context, string, interface{}) error         { return nil }
func (Disabled) Evict(context.Context, ...string) error                 { return nil }
