package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a full round of checks.
const DefaultCheckTimeout = 5 * time.Second

// Aggregator runs a set of checkers as one.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an Aggregator. A non-positive timeout uses
// DefaultCheckTimeout.
func NewAggregator(timeout ...time.Duration) *Aggregator {
	t := DefaultCheckTimeout
	if len(timeout) > 0 && timeout[0] > 0 {
		t = timeout[0]
	}
	return &Aggregator{
		timeout:  t,
		checkers: make(map[string]Checker),
	}
}

// Register adds or replaces a checker.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Names returns checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs one named checker.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return run(ctx, checker), nil
}

// Report is the folded outcome of every checker.
type Report struct {
	Status  Status
	Results map[string]Result
}

// Run executes every checker concurrently. A checker still running at the
// deadline is reported unhealthy with ErrCheckTimeout.
func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, c := range a.checkers {
		checkers[name] = c
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	report := Report{Status: StatusHealthy, Results: make(map[string]Result, len(checkers))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := run(ctx, c)
			mu.Lock()
			report.Results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range report.Results {
		report.Status = report.Status.Worse(res.Status)
	}
	return report
}

// run executes one check, bounding it by ctx and recovering panics.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	ch := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Unhealthy(fmt.Sprintf("check panicked: %v", r), ErrCheckPanicked)
			}
		}()
		ch <- c.Check(ctx)
	}()

	var res Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = time.Since(start)
	if res.Timestamp.IsZero() {
		res.Timestamp = start
	}
	return res
}

// Checker exposes the aggregator as a single Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		report := a.Run(ctx)
		details := make(map[string]any, len(report.Results))
		for name, res := range report.Results {
			details[name] = res.Status.String()
		}
		return Result{
			Status:    report.Status,
			Message:   fmt.Sprintf("%d checks, overall %s", len(report.Results), report.Status),
			Details:   details,
			Timestamp: time.Now(),
		}
	})
}
