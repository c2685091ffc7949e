// Package cache provides a two-tier freshness cache for upstream data.
//
// An Engine keeps a bounded memory tier in front of an optional durable
// Store. Each read carries a Policy: values younger than the TTL are served
// directly, values approaching the TTL are served and refreshed in the
// background, and anything older is fetched while the caller waits.
// Concurrent fetches for one key are collapsed into a single upstream call,
// and a failed fetch falls back to the last cached value.
//
// Get, Refresh and Subscribe are generic over the payload type. Values are
// kept as-is in memory and as JSON in the durable store.
package cache
