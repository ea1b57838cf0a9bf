// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"context"
	"time"
)

// CacheInterface is an advisory JSON cache. Implementations swallow backend
// failures: reads report a miss, writes become no-ops. Callers must never
// depend on the cache for correctness.
type CacheInterface interface {
	GetJSON(ctx context.Context, key string, dest any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeleteByPrefix(ctx context.Context, prefix string)
}
