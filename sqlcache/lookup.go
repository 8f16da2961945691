package sqlcache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shakahl/caching/cache/memory"
	"github.com/shakahl/caching/internal/keyutil"
)

// Queryer is the read surface Lookup needs; *sql.DB, *sql.Conn and *sql.Tx
// all satisfy it.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LookupOptions configures a Lookup.
type LookupOptions struct {
	// Prefix namespaces this lookup's keys inside a shared cache.
	Prefix string
	// TTL bounds how long a query result is served without re-querying.
	TTL time.Duration
}

func (o LookupOptions) withDefaults() LookupOptions {
	if o.Prefix == "" {
		o.Prefix = "sql"
	}
	if o.TTL <= 0 {
		o.TTL = time.Minute
	}
	return o
}

// Lookup caches single-row, single-column query results keyed by statement
// and arguments. Concurrent cache misses for the same statement run the
// query once; a failed query is never cached, so the next call retries.
type Lookup struct {
	db     Queryer
	cache  *memory.Cache
	prefix string
	ttl    time.Duration
}

// NewLookup wraps a query surface and a cache instance.
func NewLookup(db Queryer, c *memory.Cache, opts LookupOptions) *Lookup {
	cfg := opts.withDefaults()
	return &Lookup{db: db, cache: c, prefix: cfg.Prefix, ttl: cfg.TTL}
}

// String runs query expecting one string column and caches the result.
func (l *Lookup) String(ctx context.Context, query string, args ...any) (string, error) {
	return memory.GetOrAddContext(l.cache, ctx, l.key(query, args), func(ctx context.Context) (string, error) {
		var out string
		if err := l.db.QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
			return "", fmt.Errorf("sqlcache: %w", err)
		}
		return out, nil
	}, l.ttl)
}

// Int64 runs query expecting one integer column and caches the result.
func (l *Lookup) Int64(ctx context.Context, query string, args ...any) (int64, error) {
	return memory.GetOrAddContext(l.cache, ctx, l.key(query, args), func(ctx context.Context) (int64, error) {
		var out int64
		if err := l.db.QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
			return 0, fmt.Errorf("sqlcache: %w", err)
		}
		return out, nil
	}, l.ttl)
}

// Invalidate drops the cached result for one statement and argument set.
func (l *Lookup) Invalidate(query string, args ...any) {
	l.cache.Delete(l.key(query, args))
}

// InvalidateAll drops every result cached under this lookup's prefix,
// leaving other users of the shared cache untouched.
func (l *Lookup) InvalidateAll() {
	prefix := l.prefix + ":"
	l.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (l *Lookup) key(query string, args []any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, query)
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return l.prefix + ":" + keyutil.Digest(parts...)
}
