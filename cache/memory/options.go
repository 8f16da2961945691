package memory

import "github.com/shakahl/caching/cache"

// Options configures a Cache instance.
type Options struct {
	Clock cache.Clock
}

type Option func(*Options)

// WithClock overrides the time source used for expiry decisions.
func WithClock(clock cache.Clock) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

func defaultOptions() Options {
	return Options{Clock: cache.SystemClock()}
}
