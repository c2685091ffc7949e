package buscache

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/observe"
	"github.com/jonwraymond/transitcache/resilience"
	"github.com/jonwraymond/transitcache/transit"
)

// Default maintenance intervals.
const (
	DefaultLiveInterval  = 30 * time.Second
	DefaultLinesInterval = 30 * time.Minute
)

// Service is the cached view of a transit.Upstream.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Get* methods never fail; Refresh* methods return the fetch error.
// - Lifecycle: Close stops maintenance. The engine is owned by the caller.
type Service struct {
	engine   *cache.Engine
	upstream transit.Upstream
	policies Policies
	executor *resilience.Executor
	mw       *observe.Middleware
	logger   observe.Logger

	liveInterval  time.Duration
	linesInterval time.Duration
	maintenance   bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExecutor runs every upstream call through ex.
func WithExecutor(ex *resilience.Executor) Option {
	return func(s *Service) { s.executor = ex }
}

// WithMiddleware wraps every upstream call with tracing and metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(s *Service) {
		if mw != nil {
			s.mw = mw
		}
	}
}

// WithPolicies overrides dataset policies. Datasets missing from p keep the
// built-in policy.
func WithPolicies(p Policies) Option {
	return func(s *Service) {
		for d, pol := range p {
			s.policies[d] = pol
		}
	}
}

// WithLiveInterval sets how often live buses are refreshed.
func WithLiveInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.liveInterval = d
		}
	}
}

// WithLinesInterval sets how often the line catalog is refreshed.
func WithLinesInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.linesInterval = d
		}
	}
}

// WithoutMaintenance disables the refresh timers.
func WithoutMaintenance() Option {
	return func(s *Service) { s.maintenance = false }
}

// New creates a Service and starts its maintenance timers.
func New(engine *cache.Engine, upstream transit.Upstream, opts ...Option) *Service {
	s := &Service{
		engine:        engine,
		upstream:      upstream,
		policies:      DefaultPolicies(),
		logger:        observe.NopLogger(),
		liveInterval:  DefaultLiveInterval,
		linesInterval: DefaultLinesInterval,
		maintenance:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(observe.F("component", "buscache"))
	if s.mw == nil {
		s.mw = observe.NewMiddleware(nil, nil, s.logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.maintenance {
		s.startMaintenance(ctx)
	}
	return s
}

// Close stops the maintenance timers and waits for a running tick to
// finish. It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(s.cancel)
	s.wg.Wait()
	return nil
}

// Engine returns the underlying engine.
func (s *Service) Engine() *cache.Engine { return s.engine }

// Policies returns a copy of the effective dataset policies.
func (s *Service) Policies() Policies {
	out := make(Policies, len(s.policies))
	for d, p := range s.policies {
		out[d] = p
	}
	return out
}

// fetcher wraps an upstream call with the middleware and the executor.
func fetcher[T any](s *Service, d Dataset, key string, call func(context.Context) (T, error)) cache.Fetcher[T] {
	meta := observe.FetchMeta{Dataset: string(d), Key: key}
	return func(ctx context.Context) (T, error) {
		var out T
		err := s.mw.Run(ctx, meta, func(ctx context.Context) error {
			op := func(ctx context.Context) error {
				v, err := call(ctx)
				if err != nil {
					return err
				}
				out = v
				return nil
			}
			if s.executor == nil {
				return op(ctx)
			}
			return s.executor.Execute(ctx, op)
		})
		return out, err
	}
}

// read serves key through the engine and degrades every failure to the
// zero value of T.
func read[T any](ctx context.Context, s *Service, d Dataset, key string, call func(context.Context) (T, error)) T {
	start := time.Now()
	res, err := cache.Get(ctx, s.engine, key, fetcher(s, d, key, call), s.policies.Policy(d))
	if err != nil {
		s.logger.Warn(ctx, "read failed", observe.F("dataset", string(d)), observe.F("key", key), observe.Err(err))
		var zero T
		return zero
	}
	if res.Stale() {
		s.logger.Warn(ctx, "serving stale value",
			observe.F("dataset", string(d)), observe.F("key", key),
			observe.F("age", res.Age.String()), observe.Err(res.Err))
	}
	s.logger.Debug(ctx, "read completed",
		observe.F("dataset", string(d)),
		observe.F("key", key),
		observe.F("source", res.Source.String()),
		observe.F("duration_ms", time.Since(start).Milliseconds()))
	return res.Value
}

func refresh[T any](ctx context.Context, s *Service, d Dataset, key string, call func(context.Context) (T, error)) (T, error) {
	s.logger.Info(ctx, "force refresh", observe.F("dataset", string(d)), observe.F("key", key))
	res, err := cache.Refresh(ctx, s.engine, key, fetcher(s, d, key, call), s.policies.Policy(d))
	if err != nil {
		var zero T
		return zero, err
	}
	return res.Value, nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
