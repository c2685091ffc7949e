package cache

import (
	"time"

	"github.com/jonwraymond/transitcache/observe"
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables the durable tier.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithMaxEntries bounds the memory tier. Non-positive values are ignored.
func WithMaxEntries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxEntries = n
		}
	}
}

// WithPrefix sets the namespace prepended to every durable key.
func WithPrefix(prefix string) Option {
	return func(e *Engine) { e.prefix = prefix }
}

// WithDefaultTTL sets the TTL used by policies with a zero TTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTTL = d
		}
	}
}

// WithRefreshThreshold sets the threshold used by policies with a zero
// RefreshThreshold.
func WithRefreshThreshold(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.refreshThreshold = d
		}
	}
}

// WithRefreshDelay delays every background refresh by d after it is
// scheduled. Close interrupts the delay.
func WithRefreshDelay(d time.Duration) Option {
	return func(e *Engine) { e.refreshDelay = d }
}

// WithLogger sets the engine logger.
func WithLogger(l observe.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics installs a metrics hook.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock replaces time.Now. Tests use it to move entries through their
// lifecycle without sleeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Metrics receives engine events as they happen.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly; they are
// called on the read path.
type Metrics interface {
	Hit()
	Miss()
	PersistenceHit()
	BackgroundRefresh()
	// Fetch is called once per upstream fetch with its outcome.
	Fetch(err error)
	Evict(n int)
	// Size reports the memory tier size after a write.
	Size(n int)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()               {}
func (NoopMetrics) Miss()              {}
func (NoopMetrics) PersistenceHit()    {}
func (NoopMetrics) BackgroundRefresh() {}
func (NoopMetrics) Fetch(error)        {}
func (NoopMetrics) Evict(int)          {}
func (NoopMetrics) Size(int)           {}
