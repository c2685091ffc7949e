package observe

import (
	"context"
	"time"
)

// FetchFunc is one upstream call wrapped by Middleware.
type FetchFunc func(ctx context.Context) error

// Middleware wraps upstream fetches with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Run is safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes fn inside a span named after meta and records the outcome.
func (m *Middleware) Run(ctx context.Context, meta FetchMeta, fn FetchFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := m.now()

	err := fn(ctx)

	duration := m.now().Sub(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordFetch(ctx, meta, duration, err)

	fields := []Field{
		F("dataset", meta.Dataset),
		F("key", meta.Key),
		F("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		m.logger.Warn(ctx, "upstream fetch failed", append(fields, Err(err))...)
	} else {
		m.logger.Debug(ctx, "upstream fetch completed", fields...)
	}
	return err
}

// MiddlewareFromObserver builds a Middleware from an Observer's providers.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
