package resilience

import (
	"context"
	"time"
)

// Executor composes the resilience patterns around one operation.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. Without options it runs the operation
// unchanged.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds a rate limiter.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds a concurrency cap.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker { return e.circuitBreaker }

// Bulkhead returns the configured bulkhead, or nil.
func (e *Executor) Bulkhead() *Bulkhead { return e.bulkhead }

type layer interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Execute runs op through the configured patterns. From the outside in:
// rate limiter, bulkhead, circuit breaker, retry, timeout.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	// Innermost first.
	var layers []layer
	if e.timeout != nil {
		layers = append(layers, e.timeout)
	}
	if e.retry != nil {
		layers = append(layers, e.retry)
	}
	if e.circuitBreaker != nil {
		layers = append(layers, e.circuitBreaker)
	}
	if e.bulkhead != nil {
		layers = append(layers, e.bulkhead)
	}
	if e.rateLimiter != nil {
		layers = append(layers, e.rateLimiter)
	}

	run := op
	for _, l := range layers {
		inner := run
		run = func(ctx context.Context) error {
			return l.Execute(ctx, inner)
		}
	}
	return run(ctx)
}
