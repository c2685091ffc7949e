package buscache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/observe"
)

// Warmup loads live buses and the line catalog concurrently and waits for
// both. The result has an entry per dataset, nil when it loaded.
func (s *Service) Warmup(ctx context.Context) map[Dataset]error {
	start := time.Now()
	results := make(map[Dataset]error, 2)
	var mu sync.Mutex
	set := func(d Dataset, err error) {
		mu.Lock()
		results[d] = err
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := cache.Get(ctx, s.engine, KeyLiveBuses,
			fetcher(s, LiveBuses, KeyLiveBuses, s.upstream.GetLiveBuses), s.policies.Policy(LiveBuses))
		set(LiveBuses, err)
		return nil
	})
	g.Go(func() error {
		_, err := cache.Get(ctx, s.engine, KeyAllLines,
			fetcher(s, AllLines, KeyAllLines, s.upstream.GetAllLines), s.policies.Policy(AllLines))
		set(AllLines, err)
		return nil
	})
	_ = g.Wait()

	for d, err := range results {
		if err != nil {
			s.logger.Warn(ctx, "warmup dataset failed", observe.F("dataset", string(d)), observe.Err(err))
		}
	}
	s.logger.Info(ctx, "warmup completed", observe.F("duration_ms", time.Since(start).Milliseconds()))
	return results
}

// PreloadEssential warms the same datasets as Warmup through the engine's
// preload path and reports per key.
func (s *Service) PreloadEssential(ctx context.Context) map[string]error {
	return s.engine.Preload(ctx, []cache.PreloadItem{
		cache.NewPreloadItem(KeyLiveBuses,
			fetcher(s, LiveBuses, KeyLiveBuses, s.upstream.GetLiveBuses), s.policies.Policy(LiveBuses)),
		cache.NewPreloadItem(KeyAllLines,
			fetcher(s, AllLines, KeyAllLines, s.upstream.GetAllLines), s.policies.Policy(AllLines)),
	})
}
