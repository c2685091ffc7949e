package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds an attempt when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Timeout bounds each operation with a deadline.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a Timeout. Non-positive durations use DefaultTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{d: d}
}

// Execute runs op with a derived deadline. When the deadline, not the
// caller, ends the operation the error wraps ErrTimeout.
//
// op must honor its context; Execute does not abandon it.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	err := op(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.d, err)
	}
	return err
}

// Duration returns the configured deadline.
func (t *Timeout) Duration() time.Duration {
	return t.d
}
