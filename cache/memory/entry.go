package memory

import (
	"sync"
	"time"
)

// entry is one cached slot. Its key and expiry are fixed at creation;
// refreshing a key means removing the entry and creating a new one.
// The embedded cell realizes the value lazily, at most once.
type entry struct {
	key       string
	expiresAt time.Time
	cell      cell
}

func newEntry(key string, produce func() (any, error), expiresAt time.Time) *entry {
	e := &entry{key: key, expiresAt: expiresAt}
	e.cell.produce = produce
	return e
}

// newRealizedEntry builds an entry whose value is already known, so forcing
// it never runs a producer. Used by Update.
func newRealizedEntry(key string, value any, expiresAt time.Time) *entry {
	e := &entry{key: key, expiresAt: expiresAt}
	e.cell.done = true
	e.cell.value = value
	return e
}

// expired reports whether the entry is stale at the given instant. The
// boundary itself counts as expired: an entry created at T with TTL D is
// reusable strictly before T+D.
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.After(now)
}

// cell is a memoized deferred computation. The first caller of force runs
// the producer while holding the cell gate; concurrent callers block on the
// same gate and observe the memoized outcome, so the producer runs at most
// once per cell. Both success and failure are shared with every caller
// holding a reference to the same cell; retry after a failure happens by
// evicting the enclosing entry, never by re-arming the cell.
type cell struct {
	gate    sync.Mutex
	done    bool
	value   any
	err     error
	produce func() (any, error)
}

func (c *cell) force() (any, error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if !c.done {
		c.value, c.err = c.produce()
		c.produce = nil
		c.done = true
	}
	return c.value, c.err
}
