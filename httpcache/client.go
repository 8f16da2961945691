package httpcache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shakahl/caching/cache/memory"
	"github.com/shakahl/caching/internal/keyutil"
)

// ClientOptions controls the read-through HTTP client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
	Headers map[string]string
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.TTL <= 0 {
		o.TTL = time.Minute
	}
	return o
}

// Client is a read-through caching HTTP client. Fetched bodies are cached
// per URL for the configured TTL; concurrent fetches of the same URL hit the
// origin once and share the result. Failed fetches are not cached.
type Client struct {
	rest  *resty.Client
	cache *memory.Cache
	ttl   time.Duration
}

// NewClient wraps the given cache with a resty-backed fetcher.
func NewClient(c *memory.Cache, opts ClientOptions) *Client {
	cfg := opts.withDefaults()

	rc := resty.New()
	rc.SetTimeout(cfg.Timeout)
	if cfg.BaseURL != "" {
		rc.SetBaseURL(cfg.BaseURL)
	}
	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}

	return &Client{rest: rc, cache: c, ttl: cfg.TTL}
}

// Get returns the response body for url, fetching it at most once per TTL
// window. Non-2xx responses are reported as errors and never cached.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return memory.GetOrAddContext(c.cache, ctx, fetchKey(url), func(ctx context.Context) ([]byte, error) {
		resp, err := c.rest.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("httpcache: GET %s: unexpected status %s", url, resp.Status())
		}
		return resp.Body(), nil
	}, c.ttl)
}

// Forget drops the cached body for url, forcing the next Get to refetch.
func (c *Client) Forget(url string) {
	c.cache.Delete(fetchKey(url))
}

func fetchKey(url string) string {
	return keyutil.Digest(http.MethodGet, url)
}
