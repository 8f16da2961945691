package memory

import (
	"context"
	"time"

	"github.com/shakahl/caching/cache"
)

// Store adapts a Cache to the byte-oriented cache.Store interface so the
// in-memory engine can stand in wherever a backend store is expected.
// Payloads are copied on the way in and out; callers never share slices
// with the cache.
type Store struct {
	cache *Cache
}

// NewStore wraps an existing Cache.
func NewStore(c *Cache) *Store {
	return &Store{cache: c}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, cache.ErrNotFound
	}
	payload, ok := value.([]byte)
	if !ok {
		return nil, cache.ErrWrongType
	}
	return append([]byte(nil), payload...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.cache.Update(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !s.cache.remove(key) {
		return cache.ErrNotFound
	}
	return nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
