package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "techstore:reports:"
	generationKey = keyPrefix + "generation"
)

// ReportCache stores serialized report results. Invalidation bumps a
// generation counter that is part of every key, so stale entries simply
// stop being read and age out through their TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a new Redis-backed report cache.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ReportCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get report generation: %w", err)
	}
	return gen, nil
}

func (c *ReportCache) entryKey(ctx context.Context, key string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sv%d:%s", keyPrefix, gen, key), nil
}

// Get decodes the cached value for key into dst. It reports false on a miss.
func (c *ReportCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	k, err := c.entryKey(ctx, key)
	if err != nil {
		return false, err
	}

	data, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get report: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal report: %w", err)
	}
	return true, nil
}

// Set stores v under key with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, key string, v any) error {
	k, err := c.entryKey(ctx, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := c.client.Set(ctx, k, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set report: %w", err)
	}
	return nil
}

// InvalidateAll makes every cached report unreachable.
func (c *ReportCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr report generation: %w", err)
	}
	return nil
}
