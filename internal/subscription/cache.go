package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-verification/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "publisher:"

// CacheEntry is the cached view of a user's publisher capability.
type CacheEntry struct {
	RequestID  string                    `json:"requestId"`
	Status     models.SubscriptionStatus `json:"status"`
	ValidUntil time.Time                 `json:"validUntil"`
}

// Covers reports whether the cached window still covers now.
func (e CacheEntry) Covers(now time.Time) bool {
	return e.Status == models.SubscriptionActive && !now.After(e.ValidUntil)
}

// Cache stores eligibility answers. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, userID string) (*CacheEntry, error)
	Set(ctx context.Context, userID string, entry CacheEntry, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, entry CacheEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
