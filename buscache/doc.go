// Package buscache binds the cache engine to the transit datasets.
//
// Every dataset has a fixed key scheme and a cache.Policy. Read operations
// never return errors: a failed fetch with nothing cached yields an empty
// slice or nil, and a failed fetch with something cached yields the cached
// value however old it is.
//
// A Service also keeps the two hot datasets (live buses and the line catalog)
// refreshed on timers until Close is called.
//
// # Example
//
//	engine := cache.New(cache.WithStore(store.NewMemory()))
//	svc := buscache.New(engine, upstream)
//	defer svc.Close()
//
//	buses := svc.GetLiveBuses(ctx)
package buscache
