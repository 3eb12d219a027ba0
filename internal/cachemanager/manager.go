package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a TTL cache over string-like keys. Relais keeps two of
// these: a read cache in front of reviewer lookups and a dedup ledger for
// the pre-warning sweep.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetMultiple(ctx context.Context, keys []K) (map[K]V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Add(ctx context.Context, key K, value V, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
