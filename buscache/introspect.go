package buscache

import (
	"context"

	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/observe"
)

// CacheStatus describes the hot datasets.
type CacheStatus struct {
	LiveBuses cache.Status `json:"liveBuses"`
	AllLines  cache.Status `json:"allLines"`
	Stats     cache.Stats  `json:"cacheStats"`
}

// Readiness tells a caller which screens can render from cache.
type Readiness struct {
	LiveBuses  bool `json:"liveBuses"`
	AllLines   bool `json:"allLines"`
	CacheReady bool `json:"cacheReady"`
}

// CacheStats returns the engine counters.
func (s *Service) CacheStats() cache.Stats {
	return s.engine.Stats()
}

// CacheStatus returns key status for the hot datasets plus engine counters.
func (s *Service) CacheStatus() CacheStatus {
	return CacheStatus{
		LiveBuses: s.engine.Status(KeyLiveBuses),
		AllLines:  s.engine.Status(KeyAllLines),
		Stats:     s.engine.Stats(),
	}
}

// IsDataReady reports whether d is in memory and younger than its TTL.
// Datasets keyed by an identifier are never ready.
func (s *Service) IsDataReady(d Dataset) bool {
	key, ok := KeyFor(d)
	if !ok {
		return false
	}
	return s.ready(d, s.engine.Status(key))
}

func (s *Service) ready(d Dataset, st cache.Status) bool {
	ttl := s.policies.Policy(d).TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return st.Exists && st.InMemory && st.Age < ttl
}

// DataReadiness returns readiness of the hot datasets.
func (s *Service) DataReadiness() Readiness {
	return Readiness{
		LiveBuses:  s.IsDataReady(LiveBuses),
		AllLines:   s.IsDataReady(AllLines),
		CacheReady: s.engine.Len() > 0,
	}
}

// ClearCache clears one dataset. For datasets keyed by an identifier every
// cached identifier is cleared. An empty d clears everything; an unknown d
// is logged and ignored.
func (s *Service) ClearCache(ctx context.Context, d Dataset) {
	if d == "" {
		s.engine.ClearAll(ctx)
		s.logger.Info(ctx, "cleared all datasets")
		return
	}
	if key, ok := KeyFor(d); ok {
		if err := s.engine.Clear(ctx, key); err != nil {
			s.logger.Warn(ctx, "clear failed", observe.F("dataset", string(d)), observe.Err(err))
			return
		}
		s.logger.Info(ctx, "cleared dataset", observe.F("dataset", string(d)))
		return
	}
	if _, ok := keyPrefixes[d]; !ok {
		s.logger.Warn(ctx, "clear of unknown dataset ignored", observe.F("dataset", string(d)))
		return
	}
	n := s.engine.ClearMatching(ctx, func(key string) bool {
		owner, ok := DatasetOf(key)
		return ok && owner == d
	})
	s.logger.Info(ctx, "cleared dataset", observe.F("dataset", string(d)), observe.F("keys", n))
}
