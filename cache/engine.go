package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/transitcache/observe"
)

// Engine is a two-tier cache: a bounded memory tier in front of an optional
// durable Store. Reads go through Get and Refresh.
//
// Contract:
// - Concurrency: safe for concurrent use. At most one fetch per key runs at
// a time; concurrent callers share its result.
// - Context: a caller giving up on its context does not cancel the shared
// fetch, which completes and updates the cache.
// - Errors: durable store failures are logged and never returned.
type Engine struct {
	mu         sync.Mutex
	entries    map[string]*entry
	timestamps map[string]time.Time
	subs       map[string]map[uint64]func(any)
	nextSubID  uint64
	inflight   map[string]struct{}
	refreshing map[string]struct{}
	stats      counters
	closed     bool

	group     singleflight.Group
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once

	indexOnce sync.Once
	indexMu   sync.Mutex

	store            Store
	maxEntries       int
	prefix           string
	defaultTTL       time.Duration
	refreshThreshold time.Duration
	refreshDelay     time.Duration
	logger           observe.Logger
	metrics          Metrics
	now              func() time.Time
}

type counters struct {
	hits                uint64
	misses              uint64
	backgroundRefreshes uint64
	persistenceHits     uint64
	fetches             uint64
	fetchErrors         uint64
	staleServed         uint64
	evictions           uint64
}

// fetchFunc is a Fetcher with its type erased.
type fetchFunc func(ctx context.Context) (any, error)

// decodeFunc turns a durable payload back into a value.
type decodeFunc func(raw string) (any, error)

// outcome is the untyped form of Result.
type outcome struct {
	value    any
	source   Source
	storedAt time.Time
	err      error
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		entries:          make(map[string]*entry),
		timestamps:       make(map[string]time.Time),
		subs:             make(map[string]map[uint64]func(any)),
		inflight:         make(map[string]struct{}),
		refreshing:       make(map[string]struct{}),
		done:             make(chan struct{}),
		maxEntries:       DefaultMaxEntries,
		prefix:           DefaultPrefix,
		defaultTTL:       DefaultTTL,
		refreshThreshold: DefaultRefreshThreshold,
		logger:           observe.NopLogger(),
		metrics:          NoopMetrics{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(observe.F("component", "cache"))
	return e
}

// Close stops new background refreshes, interrupts pending refresh delays
// and waits for running refreshes to finish. Subsequent Get and Refresh
// calls return ErrClosed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.done)
	})
	e.wg.Wait()
	return nil
}

func (e *Engine) check(key string, fetch fetchFunc) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if fetch == nil {
		return ErrNilFetcher
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return nil
}

func (e *Engine) age(now time.Time, key string) (time.Time, time.Duration) {
	storedAt, ok := e.timestamps[key]
	if !ok {
		return time.Time{}, time.Duration(math.MaxInt64)
	}
	return storedAt, now.Sub(storedAt)
}

func (e *Engine) get(ctx context.Context, key string, fetch fetchFunc, decode decodeFunc, p Policy) (outcome, error) {
	if err := e.check(key, fetch); err != nil {
		return outcome{}, err
	}
	e.ensureIndex(ctx)
	p = p.withDefaults(e.defaultTTL, e.refreshThreshold)

	e.mu.Lock()
	storedAt, age := e.age(e.now(), key)
	if ent, ok := e.entries[key]; ok && p.Fresh(age) {
		e.stats.hits++
		spawn := e.claimRefreshLocked(key, age, p)
		out := outcome{value: ent.value, source: SourceMemory, storedAt: ent.storedAt}
		e.mu.Unlock()

		e.metrics.Hit()
		if spawn {
			e.spawnRefresh(ctx, key, fetch, p)
		}
		return out, nil
	}
	_, inMemory := e.entries[key]
	e.mu.Unlock()

	if !inMemory && p.Fresh(age) && e.store != nil {
		if out, ok := e.fromDurable(ctx, key, storedAt, age, fetch, decode, p); ok {
			return out, nil
		}
	}

	e.mu.Lock()
	e.stats.misses++
	e.mu.Unlock()
	e.metrics.Miss()

	return e.fetchAndCache(ctx, key, fetch, p)
}

// fromDurable serves a key whose timestamp is fresh but whose value is not
// in memory, which happens after a restart or an eviction.
func (e *Engine) fromDurable(ctx context.Context, key string, storedAt time.Time, age time.Duration, fetch fetchFunc, decode decodeFunc, p Policy) (outcome, bool) {
	raw, ok, err := e.store.Get(ctx, e.prefix+key)
	if err != nil {
		e.logger.Warn(ctx, "durable read failed", observe.F("key", key), observe.Err(err))
		return outcome{}, false
	}
	if !ok {
		return outcome{}, false
	}
	value, err := decode(raw)
	if err != nil {
		e.logger.Warn(ctx, "durable payload undecodable", observe.F("key", key), observe.Err(err))
		return outcome{}, false
	}

	e.mu.Lock()
	if ent, ok := e.entries[key]; ok && !ent.storedAt.Before(storedAt) {
		// A fetch landed while the store was being read.
		e.mu.Unlock()
		return outcome{value: ent.value, source: SourceMemory, storedAt: ent.storedAt}, true
	}
	e.entries[key] = &entry{value: value, storedAt: storedAt}
	e.stats.persistenceHits++
	evicted := e.evictLocked(key)
	size := len(e.entries)
	spawn := e.claimRefreshLocked(key, age, p)
	e.mu.Unlock()

	e.metrics.PersistenceHit()
	e.afterWrite(ctx, evicted, size)
	if spawn {
		e.spawnRefresh(ctx, key, fetch, p)
	}
	return outcome{value: value, source: SourceDurable, storedAt: storedAt}, true
}

// claimRefreshLocked reports whether the caller should start a background
// refresh for key and, if so, marks it as refreshing.
//
// The caller must hold e.mu.
func (e *Engine) claimRefreshLocked(key string, age time.Duration, p Policy) bool {
	if e.closed || !p.RefreshDue(age) {
		return false
	}
	if _, ok := e.inflight[key]; ok {
		return false
	}
	if _, ok := e.refreshing[key]; ok {
		return false
	}
	e.refreshing[key] = struct{}{}
	e.stats.backgroundRefreshes++
	e.wg.Add(1)
	return true
}

func (e *Engine) spawnRefresh(ctx context.Context, key string, fetch fetchFunc, p Policy) {
	e.metrics.BackgroundRefresh()
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.refreshing, key)
			e.mu.Unlock()
		}()

		if e.refreshDelay > 0 {
			t := time.NewTimer(e.refreshDelay)
			select {
			case <-t.C:
			case <-e.done:
				t.Stop()
				return
			}
		}

		if _, err := e.fetchAndCache(ctx, key, fetch, p); err != nil {
			e.logger.Warn(ctx, "background refresh failed", observe.F("key", key), observe.Err(err))
		}
	}()
}

func (e *Engine) refresh(ctx context.Context, key string, fetch fetchFunc, p Policy) (outcome, error) {
	if err := e.check(key, fetch); err != nil {
		return outcome{}, err
	}
	e.ensureIndex(ctx)
	return e.fetchAndCache(ctx, key, fetch, p.withDefaults(e.defaultTTL, e.refreshThreshold))
}

// fetchAndCache joins the in-flight fetch for key or starts one. The fetch
// runs detached from ctx; ctx only bounds how long this caller waits.
func (e *Engine) fetchAndCache(ctx context.Context, key string, fetch fetchFunc, p Policy) (outcome, error) {
	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return e.execute(detached, key, fetch, p)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return outcome{}, res.Err
		}
		return res.Val.(outcome), nil
	case <-ctx.Done():
		return outcome{}, ctx.Err()
	}
}

func (e *Engine) execute(ctx context.Context, key string, fetch fetchFunc, p Policy) (outcome, error) {
	e.mu.Lock()
	e.inflight[key] = struct{}{}
	e.stats.fetches++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}()

	value, err := callFetch(ctx, fetch)
	e.metrics.Fetch(err)
	if err != nil {
		e.mu.Lock()
		e.stats.fetchErrors++
		ent, ok := e.entries[key]
		if ok {
			e.stats.staleServed++
		}
		e.mu.Unlock()

		if ok {
			e.logger.Warn(ctx, "fetch failed, serving stale value",
				observe.F("key", key), observe.F("stored_at", ent.storedAt), observe.Err(err))
			return outcome{value: ent.value, source: SourceStale, storedAt: ent.storedAt, err: err}, nil
		}
		e.logger.Error(ctx, "fetch failed with nothing cached", observe.F("key", key), observe.Err(err))
		return outcome{}, fmt.Errorf("cache: fetch %q: %w", key, err)
	}

	now := e.now()
	e.mu.Lock()
	e.entries[key] = &entry{value: value, storedAt: now}
	e.timestamps[key] = now
	evicted := e.evictLocked(key)
	size := len(e.entries)
	callbacks := e.subscribersLocked(key)
	e.mu.Unlock()

	e.afterWrite(ctx, evicted, size)
	if p.Persist && e.store != nil {
		e.persist(ctx, key, value)
	}
	e.notify(ctx, key, callbacks, value)

	return outcome{value: value, source: SourceFetched, storedAt: now}, nil
}

// callFetch runs fetch, converting a panic into an error so a broken fetcher
// cannot take down the goroutine shared by every waiter.
func callFetch(ctx context.Context, fetch fetchFunc) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache: fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (e *Engine) afterWrite(ctx context.Context, evicted []string, size int) {
	if len(evicted) > 0 {
		e.metrics.Evict(len(evicted))
		e.logger.Debug(ctx, "evicted memory entries", observe.F("keys", evicted))
	}
	e.metrics.Size(size)
}

func (e *Engine) persist(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		e.logger.Warn(ctx, "value not serializable, skipping durable write", observe.F("key", key), observe.Err(err))
		return
	}
	if err := e.store.Set(ctx, e.prefix+key, string(data)); err != nil {
		e.logger.Warn(ctx, "durable write failed", observe.F("key", key), observe.Err(err))
		return
	}
	e.writeIndex(ctx)
}

// LoadIndex loads the durable timestamp index now instead of on first use,
// so later Stats and Status calls never wait on the store. It is a no-op
// once the index has been loaded or without a store.
func (e *Engine) LoadIndex(ctx context.Context) {
	e.ensureIndex(ctx)
}

// ensureIndex merges the durable timestamp index into memory on first use.
// Keys already tracked in memory keep their in-memory timestamp.
func (e *Engine) ensureIndex(ctx context.Context) {
	if e.store == nil {
		return
	}
	e.indexOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
		raw, ok, err := e.store.Get(ctx, e.prefix+indexKey)
		if err != nil {
			e.logger.Warn(ctx, "timestamp index read failed", observe.Err(err))
			return
		}
		if !ok {
			return
		}
		var index map[string]int64
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			e.logger.Warn(ctx, "timestamp index undecodable", observe.Err(err))
			return
		}

		e.mu.Lock()
		for k, ms := range index {
			if _, tracked := e.timestamps[k]; !tracked && ValidateKey(k) == nil {
				e.timestamps[k] = time.UnixMilli(ms)
			}
		}
		e.mu.Unlock()
		e.logger.Debug(ctx, "timestamp index loaded", observe.F("keys", len(index)))
	})
}

// writeIndex stores a snapshot of the timestamp index. Writes are
// serialized so a slow older snapshot cannot overwrite a newer one.
func (e *Engine) writeIndex(ctx context.Context) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	e.mu.Lock()
	index := make(map[string]int64, len(e.timestamps))
	for k, t := range e.timestamps {
		index[k] = t.UnixMilli()
	}
	e.mu.Unlock()

	data, err := json.Marshal(index)
	if err != nil {
		e.logger.Warn(ctx, "timestamp index not serializable", observe.Err(err))
		return
	}
	if err := e.store.Set(ctx, e.prefix+indexKey, string(data)); err != nil {
		e.logger.Warn(ctx, "timestamp index write failed", observe.Err(err))
	}
}

// Subscribe registers fn to receive every value successfully fetched for
// key. The returned function removes exactly this registration and may be
// called any number of times.
func (e *Engine) Subscribe(key string, fn func(any)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	set, ok := e.subs[key]
	if !ok {
		set = make(map[uint64]func(any))
		e.subs[key] = set
	}
	set[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			set, ok := e.subs[key]
			if !ok {
				return
			}
			delete(set, id)
			if len(set) == 0 {
				delete(e.subs, key)
			}
		})
	}
}

// subscribersLocked returns key's callbacks in registration order.
//
// The caller must hold e.mu.
func (e *Engine) subscribersLocked(key string) []func(any) {
	set := e.subs[key]
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(any), len(ids))
	for i, id := range ids {
		out[i] = set[id]
	}
	return out
}

func (e *Engine) notify(ctx context.Context, key string, callbacks []func(any), value any) {
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error(ctx, "subscriber panicked", observe.F("key", key), observe.F("panic", fmt.Sprint(r)))
				}
			}()
			fn(value)
		}()
	}
}

// Clear removes key from memory, the timestamp index and the durable store.
func (e *Engine) Clear(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	e.ensureIndex(ctx)

	e.mu.Lock()
	delete(e.entries, key)
	delete(e.timestamps, key)
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	if err := e.store.Remove(ctx, e.prefix+key); err != nil {
		e.logger.Warn(ctx, "durable remove failed", observe.F("key", key), observe.Err(err))
	}
	e.writeIndex(ctx)
	return nil
}

// ClearMatching removes every key for which match reports true from memory,
// the timestamp index and the durable store, and returns the number of keys
// removed. Durable values the index no longer tracks are matched too.
func (e *Engine) ClearMatching(ctx context.Context, match func(key string) bool) int {
	if match == nil {
		return 0
	}
	e.ensureIndex(ctx)

	removed := make(map[string]struct{})
	e.mu.Lock()
	for k := range e.timestamps {
		if match(k) {
			removed[k] = struct{}{}
		}
	}
	for k := range e.entries {
		if match(k) {
			removed[k] = struct{}{}
		}
	}
	for k := range removed {
		delete(e.entries, k)
		delete(e.timestamps, k)
	}
	size := len(e.entries)
	e.mu.Unlock()
	e.metrics.Size(size)

	if e.store == nil {
		return len(removed)
	}

	durable := make(map[string]struct{}, len(removed))
	for k := range removed {
		durable[k] = struct{}{}
	}
	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		e.logger.Warn(ctx, "durable key listing failed", observe.Err(err))
	}
	for _, raw := range keys {
		k, ok := strings.CutPrefix(raw, e.prefix)
		if !ok || k == indexKey || !match(k) {
			continue
		}
		durable[k] = struct{}{}
		removed[k] = struct{}{}
	}
	for k := range durable {
		if err := e.store.Remove(ctx, e.prefix+k); err != nil {
			e.logger.Warn(ctx, "durable remove failed", observe.F("key", k), observe.Err(err))
		}
	}
	e.writeIndex(ctx)
	return len(removed)
}

// ClearAll drops every entry and timestamp and removes every durable key
// carrying the engine prefix. Subscriptions and counters survive.
func (e *Engine) ClearAll(ctx context.Context) {
	e.ensureIndex(ctx)

	e.mu.Lock()
	e.entries = make(map[string]*entry)
	e.timestamps = make(map[string]time.Time)
	e.mu.Unlock()
	e.metrics.Size(0)

	if e.store == nil {
		return
	}

	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		e.logger.Warn(ctx, "durable key listing failed", observe.Err(err))
		return
	}
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, e.prefix) {
			continue
		}
		if err := e.store.Remove(ctx, k); err != nil {
			e.logger.Warn(ctx, "durable remove failed", observe.F("key", k), observe.Err(err))
			continue
		}
		removed++
	}
	e.logger.Info(ctx, "cache cleared", observe.F("durable_keys_removed", removed))
}

// Len returns the number of entries in the memory tier.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Capacity returns the memory tier bound.
func (e *Engine) Capacity() int { return e.maxEntries }
