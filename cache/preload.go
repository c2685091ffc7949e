package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/transitcache/observe"
)

// PreloadItem is one key to warm through Engine.Preload.
type PreloadItem struct {
	Key string
	run func(ctx context.Context, e *Engine) error
}

// NewPreloadItem binds a typed fetcher and policy to key.
func NewPreloadItem[T any](key string, fetch Fetcher[T], p Policy) PreloadItem {
	return PreloadItem{
		Key: key,
		run: func(ctx context.Context, e *Engine) error {
			_, err := Get(ctx, e, key, fetch, p)
			return err
		},
	}
}

// Preload reads every item concurrently and waits for all of them. One
// failure does not stop the others. The returned map has an entry per key,
// nil for keys that loaded.
func (e *Engine) Preload(ctx context.Context, items []PreloadItem) map[string]error {
	results := make(map[string]error, len(items))
	var mu sync.Mutex
	var g errgroup.Group

	for _, item := range items {
		g.Go(func() error {
			var err error
			if item.run == nil {
				err = ErrNilFetcher
			} else {
				err = item.run(ctx, e)
			}
			mu.Lock()
			results[item.Key] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	e.logger.Info(ctx, "preload finished", observe.F("items", len(items)), observe.F("failed", failed))
	return results
}
