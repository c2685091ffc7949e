// Package resilience guards upstream transit calls.
//
// Each pattern wraps a func(context.Context) error and can be used alone:
//
//   - CircuitBreaker stops calling an upstream that keeps failing and probes
//     it again after a cool-down.
//   - Retry repeats failed calls with constant, linear or exponential backoff.
//     Errors marked with Permanent, context errors and errors reporting
//     Retryable() == false are returned immediately.
//   - RateLimiter is a token bucket over golang.org/x/time/rate.
//   - Bulkhead caps concurrent calls with golang.org/x/sync/semaphore.
//   - Timeout bounds one attempt.
//
// Executor composes them in a fixed order, outermost first: rate limiter,
// bulkhead, circuit breaker, retry, timeout. A timeout therefore applies per
// attempt and a breaker counts one failure per exhausted retry sequence.
//
// NewExecutorFromConfig builds an Executor from the mapstructure-tagged
// Config used in the application configuration file:
//
//	ex := resilience.NewExecutorFromConfig(resilience.Config{
//	    Timeout: 5 * time.Second,
//	    Retry:   resilience.RetryOptions{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
//	}, logger)
//	err := ex.Execute(ctx, func(ctx context.Context) error { ... })
package resilience
