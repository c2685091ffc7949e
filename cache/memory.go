package cache

import (
	"sort"
	"time"
)

// entry is one memory-tier value. TTL is not stored; age is derived from
// storedAt at read time.
type entry struct {
	value    any
	storedAt time.Time
}

// evictLocked removes the oldest-written entries until the memory tier is
// within maxEntries, and returns the evicted keys. Timestamps are kept so
// evicted keys can still be served from the durable tier.
//
// keep is never evicted: it is the key just written, which may carry an
// old timestamp when it was restored from the durable tier.
//
// The caller must hold e.mu.
func (e *Engine) evictLocked(keep string) []string {
	excess := len(e.entries) - e.maxEntries
	if excess <= 0 {
		return nil
	}

	keys := make([]string, 0, len(e.entries))
	for k := range e.entries {
		if k != keep {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := e.entries[keys[i]].storedAt, e.entries[keys[j]].storedAt
		if a.Equal(b) {
			return keys[i] < keys[j]
		}
		return a.Before(b)
	})

	if excess > len(keys) {
		excess = len(keys)
	}
	evicted := keys[:excess]
	for _, k := range evicted {
		delete(e.entries, k)
	}
	e.stats.evictions += uint64(len(evicted))
	return evicted
}
