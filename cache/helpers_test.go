package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is a Store with switchable failures.
type memStore struct {
	mu         sync.Mutex
	data       map[string]string
	failGet    bool
	failSet    bool
	failRemove bool
	failList   bool
	gets       int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet {
		return "", false, errBoom
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errBoom
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemove {
		return errBoom
	}
	delete(s.data, key)
	return nil
}

func (s *memStore) ListKeys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errBoom
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// counter returns a fetcher yielding "<prefix>1", "<prefix>2", ...
func counter(prefix string) (Fetcher[string], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (string, error) {
		n := calls.Add(1)
		return prefix + string(rune('0'+n)), nil
	}, &calls
}

func failing() (Fetcher[string], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (string, error) {
		calls.Add(1)
		return "", errBoom
	}, &calls
}
