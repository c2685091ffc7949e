// Package health reports whether the cache service can serve transit data.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. The Aggregator
// runs registered checkers concurrently under one deadline and folds their
// results into a Report; the worst status wins.
//
// Ready-made checkers:
//
//   - NewCheckerFunc adapts a function.
//   - NewPingChecker wraps anything with Ping(ctx) error, such as the Redis
//     store.
//   - NewThresholdChecker compares a measured ratio against warning and
//     critical levels; NewHeapChecker applies it to the Go heap.
//
// Handler, ReadinessHandler and LivenessHandler expose an Aggregator over
// HTTP:
//
//	agg := health.NewAggregator()
//	agg.Register("buscache", svc.HealthChecker())
//	agg.Register("redis", health.NewPingChecker("redis", redisStore))
//	r.Get("/health", health.Handler(agg))
package health
