package health

import (
	"context"
	"fmt"
	"runtime"
)

// ThresholdConfig configures a ThresholdChecker.
type ThresholdConfig struct {
	// Warning is the ratio that triggers degraded status.
	// Default: 0.8
	Warning float64

	// Critical is the ratio that triggers unhealthy status.
	// Default: 0.95
	Critical float64
}

// ThresholdChecker compares a measured ratio in [0, 1] against warning and
// critical levels.
type ThresholdChecker struct {
	name    string
	measure func(ctx context.Context) (float64, map[string]any, error)
	config  ThresholdConfig
}

// NewThresholdChecker creates a ThresholdChecker. measure returns the ratio
// and optional details.
func NewThresholdChecker(name string, config ThresholdConfig, measure func(ctx context.Context) (float64, map[string]any, error)) *ThresholdChecker {
	if config.Warning <= 0 || config.Warning >= 1 {
		config.Warning = 0.8
	}
	if config.Critical <= 0 || config.Critical > 1 {
		config.Critical = 0.95
	}
	if config.Critical < config.Warning {
		config.Critical = config.Warning
	}
	return &ThresholdChecker{name: name, measure: measure, config: config}
}

// Name returns the name of this checker.
func (c *ThresholdChecker) Name() string { return c.name }

// Check measures and classifies the ratio.
func (c *ThresholdChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	ratio, details, err := c.measure(ctx)
	if err != nil {
		return Unhealthy(fmt.Sprintf("%s unavailable", c.name), err)
	}
	if details == nil {
		details = make(map[string]any, 1)
	}
	details["usage_percent"] = ratio * 100

	switch {
	case ratio >= c.config.Critical:
		return Unhealthy(fmt.Sprintf("%s critical: %.1f%%", c.name, ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= c.config.Warning:
		return Degraded(fmt.Sprintf("%s high: %.1f%%", c.name, ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%s normal: %.1f%%", c.name, ratio*100)).WithDetails(details)
	}
}

// NewHeapChecker watches heap allocation against maxBytes. A zero maxBytes
// uses the memory obtained from the OS.
func NewHeapChecker(maxBytes uint64, config ThresholdConfig) *ThresholdChecker {
	return NewThresholdChecker("heap", config, func(context.Context) (float64, map[string]any, error) {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)

		limit := maxBytes
		if limit == 0 {
			limit = stats.Sys
		}
		details := map[string]any{
			"heap_alloc": stats.HeapAlloc,
			"limit":      limit,
			"num_gc":     stats.NumGC,
			"goroutines": runtime.NumGoroutine(),
		}
		if limit == 0 {
			return 0, details, nil
		}
		return float64(stats.HeapAlloc) / float64(limit), details, nil
	})
}
