// Package memory implements an in-process key/value cache with per-entry TTL
// expiry and single-flight value production: concurrent callers asking for
// the same missing key run the producing function at most once and all
// observe its outcome.
//
// Two levels of locking keep unrelated keys independent. A structural mutex
// guards the shape of the key-to-entry map (insert, remove, sweep) and is
// held only for short map operations. Value production happens behind a
// per-entry gate with the structural mutex released, so a slow producer for
// one key never stalls lookups of other keys.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shakahl/caching/cache"
)

// Cache is a TTL-expiring key/value cache safe for concurrent use.
// The zero value is not usable; construct instances with New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   cache.Clock
}

// New builds an empty cache. By default it reads time from the system clock;
// pass WithClock to substitute another source.
func New(opts ...Option) *Cache {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Cache{
		entries: make(map[string]*entry),
		clock:   cfg.Clock,
	}
}

// GetOrAdd returns the cached value for key, producing and caching it first
// if the key is absent or its previous entry has expired. Concurrent calls
// for the same key share one producer invocation and receive the identical
// value. A producer error is returned verbatim to every caller sharing that
// invocation and the entry is evicted, so the next call retries from
// scratch.
//
// A zero or negative ttl yields an entry that is already stale: the current
// call still returns the produced value, the next call produces again.
func (c *Cache) GetOrAdd(key string, producer func() (any, error), ttl time.Duration) (any, error) {
	if key == "" {
		return nil, cache.ErrEmptyKey
	}
	return c.realize(key, c.acquire(key, producer, ttl))
}

// GetOrAddContext is GetOrAdd for producers that take a context. The context
// of the call that installs the entry is the one the producer observes; the
// engine itself never cancels an in-flight producer, and callers waiting on
// another caller's flight block until it finishes regardless of their own
// context.
func (c *Cache) GetOrAddContext(ctx context.Context, key string, producer func(context.Context) (any, error), ttl time.Duration) (any, error) {
	if key == "" {
		return nil, cache.ErrEmptyKey
	}
	e := c.acquire(key, func() (any, error) { return producer(ctx) }, ttl)
	return c.realize(key, e)
}

// acquire sweeps expired entries and returns the live entry for key,
// inserting a fresh deferred one when none exists. The expiry of a new entry
// is fixed here, from the same clock reading the sweep used.
func (c *Cache) acquire(key string, producer func() (any, error), ttl time.Duration) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.sweepLocked(now)

	if e, ok := c.entries[key]; ok {
		return e
	}
	e := newEntry(key, producer, now.Add(ttl))
	c.entries[key] = e
	return e
}

// realize forces the entry's cell with the structural lock released and
// applies the failure policy: a failed production evicts the key so the
// next call starts over. The eviction is best-effort by key; the rare race
// where it removes a successor entry installed concurrently under the same
// key is accepted as non-corrupting.
func (c *Cache) realize(key string, e *entry) (any, error) {
	value, err := e.cell.force()
	if err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, err
	}
	return value, nil
}

// Get returns the realized value for key, or false when the key is absent,
// expired, or its producer failed. Reading an entry that is still being
// produced blocks until that flight finishes.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.expired(c.clock.Now()) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	value, err := c.realize(key, e)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Update unconditionally installs an already-realized value for key with a
// fresh expiry and returns the value. Any previous entry for the key is
// replaced; in-flight readers of the old entry still observe the old
// outcome.
func (c *Cache) Update(key string, value any, ttl time.Duration) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = newRealizedEntry(key, value, c.clock.Now().Add(ttl))
	return value
}

// Delete removes the entry for key if present.
func (c *Cache) Delete(key string) {
	c.remove(key)
}

func (c *Cache) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// DeleteFunc removes every entry whose key satisfies pred. It inspects keys
// only and never forces realization of deferred values.
func (c *Cache) DeleteFunc(pred func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if pred(key) {
			delete(c.entries, key)
		}
	}
}

// DeleteValueFunc removes every entry whose key and realized value satisfy
// pred. Testing the predicate forces realization of each entry, which may
// run pending producers or block on flights already in progress; that work
// happens with the structural lock released, and only the removal itself is
// done under it. Entries whose producer failed are removed regardless of the
// predicate, matching the engine's failure policy.
func (c *Cache) DeleteValueFunc(pred func(key string, value any) bool) {
	c.mu.Lock()
	snapshot := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		snapshot = append(snapshot, e)
	}
	c.mu.Unlock()

	var doomed []*entry
	for _, e := range snapshot {
		value, err := e.cell.force()
		if err != nil || pred(e.key, value) {
			doomed = append(doomed, e)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range doomed {
		if cur, ok := c.entries[e.key]; ok && cur == e {
			delete(c.entries, e.key)
		}
	}
}

// Reset removes every entry unconditionally.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len reports the number of resident entries, including stale ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepLocked drops every entry that is expired at now. Expiry comparisons
// tolerate a clock that moved backward: entries simply stay live until the
// clock passes their expiry again.
func (c *Cache) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}
