package buscache

import (
	"context"
	"time"

	"github.com/jonwraymond/transitcache/observe"
)

func (s *Service) startMaintenance(ctx context.Context) {
	s.every(ctx, "live_buses", s.liveInterval, func(ctx context.Context) error {
		_, err := s.RefreshLiveBuses(ctx)
		return err
	})
	s.every(ctx, "all_lines", s.linesInterval, func(ctx context.Context) error {
		_, err := s.RefreshAllLines(ctx)
		return err
	})
}

// every runs fn on each tick until ctx is done. A failing tick is logged and
// the timer keeps running.
func (s *Service) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					s.logger.Warn(ctx, "periodic refresh failed", observe.F("task", name), observe.Err(err))
				}
			}
		}
	}()
}
