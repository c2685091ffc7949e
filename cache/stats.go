package cache

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Stats is a snapshot of the engine's process-lifetime counters.
type Stats struct {
	Hits                uint64 `json:"hits"`
	Misses              uint64 `json:"misses"`
	BackgroundRefreshes uint64 `json:"backgroundRefreshes"`
	PersistenceHits     uint64 `json:"persistenceHits"`
	Fetches             uint64 `json:"fetches"`
	FetchErrors         uint64 `json:"fetchErrors"`
	StaleServed         uint64 `json:"staleServed"`
	Evictions           uint64 `json:"evictions"`
	MemoryEntries       int    `json:"memoryEntries"`
	TrackedKeys         int    `json:"trackedKeys"`

	// HitRate is the percentage of reads served from memory, 0 before any
	// read.
	HitRate float64 `json:"hitRate"`
}

// Stats returns a snapshot of the engine counters. Unless LoadIndex or a
// read has already run, the first call loads the durable timestamp index.
func (e *Engine) Stats() Stats {
	e.ensureIndex(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Hits:                e.stats.hits,
		Misses:              e.stats.misses,
		BackgroundRefreshes: e.stats.backgroundRefreshes,
		PersistenceHits:     e.stats.persistenceHits,
		Fetches:             e.stats.fetches,
		FetchErrors:         e.stats.fetchErrors,
		StaleServed:         e.stats.staleServed,
		Evictions:           e.stats.evictions,
		MemoryEntries:       len(e.entries),
		TrackedKeys:         len(e.timestamps),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

// Status describes one key.
type Status struct {
	Key string `json:"key"`

	// Exists reports whether the key has a timestamp, in memory or in the
	// durable index.
	Exists   bool          `json:"exists"`
	InMemory bool          `json:"inMemory"`
	Age      time.Duration `json:"age"`
	HasAge   bool          `json:"hasAge"`
}

// AgeFormatted renders Age in whole seconds, e.g. "12s", or "" without a
// timestamp.
func (s Status) AgeFormatted() string {
	if !s.HasAge {
		return ""
	}
	return fmt.Sprintf("%ds", int64(math.Round(s.Age.Seconds())))
}

// Status reports what the engine knows about key without changing it. Like
// Stats, the first call may load the durable timestamp index.
func (e *Engine) Status(key string) Status {
	e.ensureIndex(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{Key: key}
	if storedAt, ok := e.timestamps[key]; ok {
		st.Exists = true
		st.HasAge = true
		st.Age = e.now().Sub(storedAt)
	}
	_, st.InMemory = e.entries[key]
	return st
}
