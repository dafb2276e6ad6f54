package cache

import (
	"context"
	"errors"
)

// based on github.com/kittpat1413/go-common/framework/cache/cache.go

var ErrCacheMiss = errors.New("cache miss")

// Cache maps keys to values loaded on demand.
// Values returned by Get and Peek are shared and must be treated as read-only.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (*V, error)
	Peek(key K) (*V, bool)
	Keys() []K
	Invalidate(ctx context.Context, key K)
	InvalidateAll(ctx context.Context)
}
