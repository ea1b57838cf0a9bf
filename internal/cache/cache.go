// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
)

const scanBatchSize = 100

var _ CacheInterface = (*Cache)(nil)

type Cache struct {
	client *redis.Client

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	ctx, span := c.tracer.Start(ctx, "cache.Cache.GetJSON")
	defer span.End()

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Errorf("cache get failed for key %q: %v", key, err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.logger.Errorf("dropping corrupt cache entry %q: %v", key, err)
		c.client.Del(ctx, key)
		return false
	}

	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	ctx, span := c.tracer.Start(ctx, "cache.Cache.SetJSON")
	defer span.End()

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Errorf("failed to marshal cache entry %q: %v", key, err)
		return
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Errorf("cache set failed for key %q: %v", key, err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	ctx, span := c.tracer.Start(ctx, "cache.Cache.Delete")
	defer span.End()

	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Errorf("cache delete failed for keys %v: %v", keys, err)
	}
}

// DeleteByPrefix walks the keyspace with SCAN and deletes matches in batches,
// so it never blocks the backend the way KEYS would.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) {
	ctx, span := c.tracer.Start(ctx, "cache.Cache.DeleteByPrefix")
	defer span.End()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			c.logger.Errorf("cache scan failed for prefix %q: %v", prefix, err)
			return
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Errorf("cache delete failed for prefix %q: %v", prefix, err)
				return
			}
		}

		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// NewClient parses a redis URL into a client, pinging it once to surface
// misconfiguration at startup.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

func NewCache(client *redis.Client, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Cache {
	c := new(Cache)

	c.client = client

	c.tracer = tracer
	c.monitor = monitor
	c.logger = logger

	return c
}
