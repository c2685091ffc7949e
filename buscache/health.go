package buscache

import (
	"context"
	"errors"

	"github.com/jonwraymond/transitcache/health"
)

// ErrNothingCached is reported by the health check before any hot dataset
// has been fetched.
var ErrNothingCached = errors.New("buscache: no hot dataset cached")

// HealthChecker returns a checker over the hot datasets: healthy when both
// are ready, degraded while any is cached but not ready, unhealthy when
// neither is cached.
func (s *Service) HealthChecker() health.Checker {
	return health.NewCheckerFunc("buscache", func(ctx context.Context) health.Result {
		if err := ctx.Err(); err != nil {
			return health.Unhealthy("context cancelled", err)
		}

		live := s.engine.Status(KeyLiveBuses)
		lines := s.engine.Status(KeyAllLines)
		details := map[string]any{
			"live_buses_age":  live.AgeFormatted(),
			"all_lines_age":   lines.AgeFormatted(),
			"memory_entries":  s.engine.Len(),
			"memory_capacity": s.engine.Capacity(),
		}

		switch {
		case s.ready(LiveBuses, live) && s.ready(AllLines, lines):
			return health.Healthy("hot datasets ready").WithDetails(details)
		case live.Exists || lines.Exists:
			return health.Degraded("hot datasets stale or partially cached").WithDetails(details)
		default:
			return health.Unhealthy("nothing cached", ErrNothingCached).WithDetails(details)
		}
	})
}
