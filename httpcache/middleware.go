// Package httpcache layers response and fetch caching on top of the memory
// engine: an echo middleware that snapshots rendered responses, and a resty
// client that deduplicates outbound fetches. Both lean on the engine's
// single-flight guarantee, so a burst of identical requests renders or
// fetches once.
package httpcache

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shakahl/caching/cache/memory"
)

// Middleware returns an echo middleware that caches rendered responses in c.
// By default only GET requests are cached, keyed by method and request URI.
// Concurrent cache misses for the same key collapse into a single handler
// invocation; every waiter replays the same snapshot. Handler errors are
// never cached, so a failed render is retried by the next request.
//
// The X-Cache response header reports MISS for the request that rendered the
// snapshot and HIT for requests served from it.
func Middleware(c *memory.Cache, opts ...MiddlewareOption) echo.MiddlewareFunc {
	cfg := defaultMiddlewareOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			if cfg.Skipper(ec.Request()) {
				return next(ec)
			}

			rendered := false
			value, err := c.GetOrAdd(cfg.KeyFunc(ec.Request()), func() (any, error) {
				rendered = true
				return render(next, ec)
			}, cfg.TTL)
			if err != nil {
				return err
			}
			return value.(*snapshot).replay(ec.Response(), rendered)
		}
	}
}

// render runs the downstream handler against a buffering writer and captures
// the outcome. The caller's response stays untouched until replay.
func render(next echo.HandlerFunc, ec echo.Context) (*snapshot, error) {
	rec := newRecorder()
	orig := ec.Response()
	ec.SetResponse(echo.NewResponse(rec, ec.Echo()))
	err := next(ec)
	ec.SetResponse(orig)
	if err != nil {
		return nil, err
	}
	return rec.snapshot(), nil
}

// snapshot is one fully rendered response, shared read-only between all
// requests served from the same cache entry.
type snapshot struct {
	status int
	header http.Header
	body   []byte
}

func (s *snapshot) replay(resp *echo.Response, rendered bool) error {
	header := resp.Header()
	for name, values := range s.header {
		header[name] = append([]string(nil), values...)
	}
	if rendered {
		header.Set("X-Cache", "MISS")
	} else {
		header.Set("X-Cache", "HIT")
	}
	resp.WriteHeader(s.status)
	_, err := resp.Write(s.body)
	return err
}

// recorder is a minimal http.ResponseWriter collecting status, headers and
// body in memory.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) { r.status = status }

func (r *recorder) Write(p []byte) (int, error) { return r.body.Write(p) }

func (r *recorder) snapshot() *snapshot {
	header := make(http.Header, len(r.header))
	for name, values := range r.header {
		header[name] = append([]string(nil), values...)
	}
	return &snapshot{
		status: r.status,
		header: header,
		body:   append([]byte(nil), r.body.Bytes()...),
	}
}
