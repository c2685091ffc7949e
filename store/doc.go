// Package store provides durable key-value backends for the cache engine.
//
// Every type here implements cache.Store. Memory is process-local and meant
// for tests, File keeps one file per key in a directory, and Redis talks to
// a Redis server. Compressed and Namespaced wrap any other Store.
package store
