package httpcache

import (
	"net/http"
	"time"

	"github.com/shakahl/caching/internal/keyutil"
)

// Skipper decides whether a request bypasses the cache entirely.
type Skipper func(*http.Request) bool

// KeyFunc derives the cache key for a request.
type KeyFunc func(*http.Request) string

type MiddlewareOptions struct {
	TTL     time.Duration
	Skipper Skipper
	KeyFunc KeyFunc
}

type MiddlewareOption func(*MiddlewareOptions)

// WithTTL sets how long a rendered response stays reusable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		if ttl > 0 {
			o.TTL = ttl
		}
	}
}

// WithSkipper overrides the default skipper, which caches only GET requests.
func WithSkipper(skipper Skipper) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		if skipper != nil {
			o.Skipper = skipper
		}
	}
}

// WithKeyFunc overrides how cache keys are derived from requests.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		if fn != nil {
			o.KeyFunc = fn
		}
	}
}

func defaultMiddlewareOptions() MiddlewareOptions {
	return MiddlewareOptions{
		TTL:     time.Minute,
		Skipper: defaultSkipper,
		KeyFunc: defaultKeyFunc,
	}
}

func defaultSkipper(r *http.Request) bool { return r.Method != http.MethodGet }

func defaultKeyFunc(r *http.Request) string {
	return keyutil.Digest(r.Method, r.URL.RequestURI())
}
