package resilience

import (
	"context"
	"testing"
	"time"
)

func BenchmarkExecutor_AllLayers(b *testing.B) {
	ex := NewExecutorFromConfig(Config{
		Timeout:        time.Second,
		Retry:          RetryOptions{MaxAttempts: 3},
		CircuitBreaker: BreakerOptions{MaxFailures: 5},
		RateLimit:      RateOptions{PerSecond: 1e9, Burst: 1 << 20},
		MaxConcurrent:  64,
	}, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ex.Execute(ctx, okOp)
	}
}

func BenchmarkCircuitBreaker_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, okOp)
	}
}
