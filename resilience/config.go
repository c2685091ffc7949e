package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/transitcache/observe"
)

// Config describes an Executor. Zero values leave a pattern out.
type Config struct {
	// Timeout bounds each upstream attempt.
	Timeout        time.Duration  `mapstructure:"timeout"`
	Retry          RetryOptions   `mapstructure:"retry"`
	CircuitBreaker BreakerOptions `mapstructure:"circuit_breaker"`
	RateLimit      RateOptions    `mapstructure:"rate_limit"`
	MaxConcurrent  int            `mapstructure:"max_concurrent"`
}

// RetryOptions enables retries when MaxAttempts > 1.
type RetryOptions struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// BreakerOptions enables the circuit breaker when MaxFailures > 0.
type BreakerOptions struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// RateOptions enables rate limiting when PerSecond > 0.
type RateOptions struct {
	PerSecond float64       `mapstructure:"per_second"`
	Burst     int           `mapstructure:"burst"`
	MaxWait   time.Duration `mapstructure:"max_wait"`
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return errors.New("resilience: timeout must not be negative")
	case c.Retry.MaxAttempts < 0 || c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0:
		return errors.New("resilience: retry settings must not be negative")
	case c.CircuitBreaker.MaxFailures < 0 || c.CircuitBreaker.ResetTimeout < 0:
		return errors.New("resilience: circuit breaker settings must not be negative")
	case c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 || c.RateLimit.MaxWait < 0:
		return errors.New("resilience: rate limit settings must not be negative")
	case c.MaxConcurrent < 0:
		return errors.New("resilience: max_concurrent must not be negative")
	}
	return nil
}

// NewExecutorFromConfig builds an Executor that logs retries and breaker
// transitions to logger. A nil logger discards them.
func NewExecutorFromConfig(cfg Config, logger observe.Logger) *Executor {
	if logger == nil {
		logger = observe.NopLogger()
	}
	logger = logger.With(observe.F("component", "resilience"))

	var opts []ExecutorOption
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Retry.MaxAttempts > 1 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Jitter:       true,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Debug(context.Background(), "retrying upstream call",
					observe.F("attempt", attempt), observe.F("delay", delay.String()), observe.Err(err))
			},
		})))
	}
	if cfg.CircuitBreaker.MaxFailures > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{
			MaxFailures:  cfg.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
			OnStateChange: func(from, to State) {
				logger.Warn(context.Background(), "circuit breaker state changed",
					observe.F("from", from.String()), observe.F("to", to.String()))
			},
		})))
	}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: cfg.MaxConcurrent})))
	}
	if cfg.RateLimit.PerSecond > 0 {
		opts = append(opts, WithRateLimiter(NewRateLimiter(RateLimiterConfig{
			Rate:        cfg.RateLimit.PerSecond,
			Burst:       cfg.RateLimit.Burst,
			WaitOnLimit: true,
			MaxWait:     cfg.RateLimit.MaxWait,
		})))
	}
	return NewExecutor(opts...)
}
