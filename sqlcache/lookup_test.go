package sqlcache

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shakahl/caching/cache/memory"
)

// The tests run against a stub database/sql driver so they stay hermetic:
// every query increments a counter and returns "result-N" (or N for count
// queries), which makes cache hits and real round-trips distinguishable.

var backend = &stubBackend{}

func init() {
	sql.Register("sqlcache-stub", stubDriver{})
}

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	backend.reset()
	db, err := sql.Open("sqlcache-stub", "stub")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLookupStringCaches(t *testing.T) {
	db := openStubDB(t)
	lookup := NewLookup(db, memory.New(), LookupOptions{TTL: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const query = "SELECT name FROM settings WHERE id = $1"

	first, err := lookup.String(ctx, query, 1)
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if first != "result-1" {
		t.Fatalf("String() = %q, want %q", first, "result-1")
	}

	second, err := lookup.String(ctx, query, 1)
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if second != first {
		t.Fatalf("cached String() = %q, want %q", second, first)
	}
	if n := backend.count(); n != 1 {
		t.Fatalf("backend queries = %d, want 1", n)
	}

	lookup.Invalidate(query, 1)

	third, err := lookup.String(ctx, query, 1)
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if third != "result-2" {
		t.Fatalf("String() after Invalidate = %q, want %q", third, "result-2")
	}
}

func TestLookupDistinguishesArgs(t *testing.T) {
	db := openStubDB(t)
	lookup := NewLookup(db, memory.New(), LookupOptions{})

	ctx := context.Background()
	const query = "SELECT name FROM settings WHERE id = $1"

	a, err := lookup.String(ctx, query, 1)
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	b, err := lookup.String(ctx, query, 2)
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if a == b {
		t.Fatalf("different args returned the same cached value %q", a)
	}
	if n := backend.count(); n != 2 {
		t.Fatalf("backend queries = %d, want 2", n)
	}
}

func TestLookupErrorNotCached(t *testing.T) {
	db := openStubDB(t)
	lookup := NewLookup(db, memory.New(), LookupOptions{})

	ctx := context.Background()
	const query = "SELECT name FROM settings WHERE id = $1"

	backend.setFail(true)
	if _, err := lookup.String(ctx, query, 1); err == nil {
		t.Fatal("expected an error while the backend is failing")
	}

	backend.setFail(false)
	value, err := lookup.String(ctx, query, 1)
	if err != nil {
		t.Fatalf("String() after recovery error = %v", err)
	}
	if value == "" {
		t.Fatal("expected a value after recovery")
	}
}

func TestLookupInt64(t *testing.T) {
	db := openStubDB(t)
	lookup := NewLookup(db, memory.New(), LookupOptions{})

	ctx := context.Background()
	const query = "SELECT count(*) FROM settings"

	first, err := lookup.Int64(ctx, query)
	if err != nil {
		t.Fatalf("Int64() error = %v", err)
	}
	second, err := lookup.Int64(ctx, query)
	if err != nil {
		t.Fatalf("Int64() error = %v", err)
	}
	if first != second {
		t.Fatalf("cached Int64() = %d, want %d", second, first)
	}
	if n := backend.count(); n != 1 {
		t.Fatalf("backend queries = %d, want 1", n)
	}
}

func TestLookupInvalidateAllIsScopedByPrefix(t *testing.T) {
	db := openStubDB(t)
	shared := memory.New()
	users := NewLookup(db, shared, LookupOptions{Prefix: "users"})
	orders := NewLookup(db, shared, LookupOptions{Prefix: "orders"})

	ctx := context.Background()

	if _, err := users.String(ctx, "SELECT name FROM users WHERE id = $1", 1); err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if _, err := orders.String(ctx, "SELECT ref FROM orders WHERE id = $1", 1); err != nil {
		t.Fatalf("String() error = %v", err)
	}

	users.InvalidateAll()

	if _, err := users.String(ctx, "SELECT name FROM users WHERE id = $1", 1); err != nil {
		t.Fatalf("String() error = %v", err)
	}
	if _, err := orders.String(ctx, "SELECT ref FROM orders WHERE id = $1", 1); err != nil {
		t.Fatalf("String() error = %v", err)
	}

	// users re-queried, orders still cached.
	if n := backend.count(); n != 3 {
		t.Fatalf("backend queries = %d, want 3", n)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}
}

// stub driver plumbing

type stubBackend struct {
	mu      sync.Mutex
	queries int
	fail    bool
}

func (b *stubBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = 0
	b.fail = false
}

func (b *stubBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}

func (b *stubBackend) setFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *stubBackend) query(query string) (driver.Rows, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries++
	if b.fail {
		return nil, errors.New("backend unavailable")
	}
	var value driver.Value = fmt.Sprintf("result-%d", b.queries)
	if strings.Contains(query, "count(") {
		value = int64(b.queries)
	}
	return &stubRows{cols: []string{"value"}, rows: [][]driver.Value{{value}}}, nil
}

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(query string) (driver.Stmt, error) {
	return stubStmt{query: query}, nil
}

func (stubConn) Close() error { return nil }

func (stubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type stubStmt struct{ query string }

func (stubStmt) Close() error { return nil }

func (stubStmt) NumInput() int { return -1 }

func (stubStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("exec not supported")
}

func (s stubStmt) Query([]driver.Value) (driver.Rows, error) {
	return backend.query(s.query)
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
