package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that a key is absent or its entry has expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrWrongType reports that a cached value does not have the type the
	// caller asked for. It is distinct from a producer failure: the entry
	// stays cached, only the typed extraction is refused.
	ErrWrongType = errors.New("cache: value has wrong type")

	// ErrEmptyKey reports a get-or-add call with an empty key.
	ErrEmptyKey = errors.New("cache: empty key")
)

// Store represents a simple TTL-based cache abstraction that can be backed
// by memory or any other KV store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Clock supplies the current time to the cache engine. Injecting a Clock is
// the only way "now" enters expiry decisions, so tests can substitute a
// controllable implementation. Implementations need only be comparable, not
// monotonic: the engine tolerates a clock that moves slightly backward.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return ClockFunc(time.Now) }
