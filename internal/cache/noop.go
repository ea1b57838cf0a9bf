// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"context"
	"time"
)

var _ CacheInterface = (*NoopCache)(nil)

// NoopCache is wired when caching is disabled, every read is a miss.
type NoopCache struct{}

func (n *NoopCache) GetJSON(ctx context.Context, key string, dest any) bool {
	return false
}

func (n *NoopCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
}

func (n *NoopCache) Delete(ctx context.Context, keys ...string) {
}

func (n *NoopCache) DeleteByPrefix(ctx context.Context, prefix string) {
}

func NewNoopCache() *NoopCache {
	return new(NoopCache)
}
