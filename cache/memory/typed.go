package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shakahl/caching/cache"
)

// The cache stores values of heterogeneous types behind one map. These
// package-level helpers give call sites a typed surface over that box: the
// stored value is extracted with a runtime cast, and a mismatch fails with
// cache.ErrWrongType rather than a producer error.

// GetOrAdd is the typed variant of Cache.GetOrAdd.
func GetOrAdd[T any](c *Cache, key string, producer func() (T, error), ttl time.Duration) (T, error) {
	value, err := c.GetOrAdd(key, func() (any, error) {
		v, err := producer()
		return v, err
	}, ttl)
	return extract[T](key, value, err)
}

// GetOrAddContext is the typed variant of Cache.GetOrAddContext.
func GetOrAddContext[T any](c *Cache, ctx context.Context, key string, producer func(context.Context) (T, error), ttl time.Duration) (T, error) {
	value, err := c.GetOrAddContext(ctx, key, func(ctx context.Context) (any, error) {
		v, err := producer(ctx)
		return v, err
	}, ttl)
	return extract[T](key, value, err)
}

// Get is the typed variant of Cache.Get. It returns cache.ErrNotFound when
// the key is absent, expired, or its producer failed.
func Get[T any](c *Cache, key string) (T, error) {
	value, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, cache.ErrNotFound
	}
	return extract[T](key, value, nil)
}

// Update is the typed variant of Cache.Update.
func Update[T any](c *Cache, key string, value T, ttl time.Duration) T {
	c.Update(key, value, ttl)
	return value
}

func extract[T any](key string, value any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("key %q holds %T: %w", key, value, cache.ErrWrongType)
	}
	return typed, nil
}
