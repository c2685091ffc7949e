package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"valid", "live_buses", nil},
		{"templated", "line_details_42", nil},
		{"empty", "", ErrInvalidKey},
		{"whitespace", "   ", ErrInvalidKey},
		{"newline", "a\nb", ErrInvalidKey},
		{"carriage return", "a\rb", ErrInvalidKey},
		{"reserved index key", "timestamps", ErrInvalidKey},
		{"too long", strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
		{"max length", strings.Repeat("k", MaxKeyLength), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ValidateKey() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPolicy(t *testing.T) {
	p := Policy{TTL: 5 * time.Minute, RefreshThreshold: 2 * time.Minute, BackgroundRefresh: true}

	tests := []struct {
		age   time.Duration
		fresh bool
		due   bool
	}{
		{0, true, false},
		{3 * time.Minute, true, false},
		{3*time.Minute + time.Second, true, true},
		{5*time.Minute - time.Second, true, true},
		{5 * time.Minute, false, true},
	}
	for _, tt := range tests {
		if got := p.Fresh(tt.age); got != tt.fresh {
			t.Errorf("Fresh(%v) = %v, want %v", tt.age, got, tt.fresh)
		}
		if got := p.RefreshDue(tt.age); got != tt.due {
			t.Errorf("RefreshDue(%v) = %v, want %v", tt.age, got, tt.due)
		}
	}

	p.BackgroundRefresh = false
	if p.RefreshDue(4 * time.Minute) {
		t.Error("RefreshDue must be false without BackgroundRefresh")
	}

	short := Policy{TTL: 30 * time.Second, BackgroundRefresh: true}.withDefaults(DefaultTTL, DefaultRefreshThreshold)
	if !short.RefreshDue(0) {
		t.Error("a threshold above the TTL makes every fresh read due")
	}
	if zero := (Policy{}).withDefaults(DefaultTTL, DefaultRefreshThreshold); zero.TTL != DefaultTTL || zero.RefreshThreshold != DefaultRefreshThreshold {
		t.Errorf("withDefaults() = %+v", zero)
	}
}

func TestGet_Freshness(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now))
	defer e.Close()
	fetch, calls := counter("v")
	p := Policy{TTL: time.Minute}

	first, err := Get(context.Background(), e, "live_buses", fetch, p)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first.Value != "v1" || first.Source != SourceFetched || first.Age != 0 {
		t.Fatalf("first = %+v", first)
	}

	clock.Advance(59 * time.Second)
	second, err := Get(context.Background(), e, "live_buses", fetch, p)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.Value != "v1" || second.Source != SourceMemory {
		t.Fatalf("second = %+v", second)
	}
	if second.Age != 59*time.Second {
		t.Errorf("Age = %v", second.Age)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}

	clock.Advance(time.Second)
	third, _ := Get(context.Background(), e, "live_buses", fetch, p)
	if third.Value != "v2" || calls.Load() != 2 {
		t.Fatalf("expired entry must be refetched: %+v calls=%d", third, calls.Load())
	}

	s := e.Stats()
	if s.Hits != 1 || s.Misses != 2 || s.Fetches != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGet_Deduplication(t *testing.T) {
	e := New()
	defer e.Close()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) ([]int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []int{1, 2, 3}, nil
	}

	const n = 25
	results := make([]Result[[]int], n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Get(context.Background(), e, "all_lines", fetch, DefaultPolicy())
		}()
	}

	<-started
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if len(results[i].Value) != 3 {
			t.Fatalf("caller %d value = %v", i, results[i].Value)
		}
	}
}

func TestGet_StaleWhileRevalidate(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now))
	defer e.Close()

	var calls atomic.Int32
	gate := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "old", nil
		}
		<-gate
		return "new", nil
	}
	p := Policy{TTL: 5 * time.Minute, RefreshThreshold: 2 * time.Minute, BackgroundRefresh: true}

	if _, err := Get(context.Background(), e, "stations", fetch, p); err != nil {
		t.Fatal(err)
	}

	// Fresh and outside the refresh window: no background work.
	clock.Advance(2 * time.Minute)
	if r, _ := Get(context.Background(), e, "stations", fetch, p); r.Value != "old" {
		t.Fatalf("value = %q", r.Value)
	}
	e.wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}

	// Inside the window: served synchronously, refreshed once.
	clock.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		r, err := Get(context.Background(), e, "stations", fetch, p)
		if err != nil || r.Value != "old" || r.Source != SourceMemory {
			t.Fatalf("read %d = %+v, %v", i, r, err)
		}
	}
	close(gate)
	e.wg.Wait()

	if calls.Load() != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls.Load())
	}
	r, _ := Get(context.Background(), e, "stations", fetch, p)
	if r.Value != "new" {
		t.Fatalf("after refresh value = %q, want new", r.Value)
	}
	if s := e.Stats(); s.BackgroundRefreshes != 1 {
		t.Errorf("BackgroundRefreshes = %d, want 1", s.BackgroundRefreshes)
	}
}

func TestGet_BackgroundRefreshDisabled(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now))
	defer e.Close()
	fetch, calls := counter("v")
	p := Policy{TTL: 5 * time.Minute, RefreshThreshold: 2 * time.Minute}

	_, _ = Get(context.Background(), e, "k", fetch, p)
	clock.Advance(4 * time.Minute)
	_, _ = Get(context.Background(), e, "k", fetch, p)
	e.wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
}

func TestGet_FallbackOnFailure(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now))
	defer e.Close()
	p := Policy{TTL: time.Minute, RefreshThreshold: 30 * time.Second, BackgroundRefresh: true}

	good, _ := counter("v")
	if _, err := Get(context.Background(), e, "live_buses", good, p); err != nil {
		t.Fatal(err)
	}
	bad, badCalls := failing()

	t.Run("background failure keeps value", func(t *testing.T) {
		clock.Advance(45 * time.Second)
		r, err := Get(context.Background(), e, "live_buses", bad, p)
		if err != nil || r.Value != "v1" {
			t.Fatalf("Get() = %+v, %v", r, err)
		}
		e.wg.Wait()
		if badCalls.Load() != 1 {
			t.Fatalf("background fetch calls = %d", badCalls.Load())
		}
	})

	t.Run("foreground failure serves stale", func(t *testing.T) {
		clock.Advance(10 * time.Minute)
		r, err := Get(context.Background(), e, "live_buses", bad, p)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if r.Value != "v1" || !r.Stale() || !errors.Is(r.Err, errBoom) {
			t.Fatalf("Get() = %+v", r)
		}
		if r.Age < 10*time.Minute {
			t.Errorf("Age = %v", r.Age)
		}
	})

	s := e.Stats()
	if s.FetchErrors != 2 || s.StaleServed != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGet_ColdMissPropagates(t *testing.T) {
	e := New()
	defer e.Close()
	bad, _ := failing()

	_, err := Get(context.Background(), e, "live_schedule_7", bad, DefaultPolicy())
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapped errBoom", err)
	}
	if !strings.Contains(err.Error(), `"live_schedule_7"`) {
		t.Errorf("error should name the key: %v", err)
	}
	if e.Len() != 0 {
		t.Error("failed fetch must not create an entry")
	}
}

func TestGet_FetcherPanic(t *testing.T) {
	e := New()
	defer e.Close()
	fetch := func(context.Context) (string, error) { panic("bad decoder") }

	_, err := Get(context.Background(), e, "k", fetch, DefaultPolicy())
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("err = %v", err)
	}
}

func TestGet_CallerCancellationDoesNotCancelFetch(t *testing.T) {
	e := New()
	defer e.Close()

	release := make(chan struct{})
	fetched := make(chan error, 1)
	fetch := func(ctx context.Context) (string, error) {
		<-release
		fetched <- ctx.Err()
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Get(ctx, e, "k", fetch, DefaultPolicy())
		errc <- err
	}()
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-fetched; err != nil {
		t.Fatalf("fetch context was cancelled: %v", err)
	}

	// The shared fetch still populated the cache.
	deadline := time.Now().Add(2 * time.Second)
	for e.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	r, err := Get(context.Background(), e, "k", fetch, DefaultPolicy())
	if err != nil || r.Value != "done" || r.Source != SourceMemory {
		t.Fatalf("Get() = %+v, %v", r, err)
	}
}

func TestGet_DurableRoundTrip(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	p := Policy{TTL: 10 * time.Minute, Persist: true}

	first := New(WithStore(store), WithClock(clock.Now))
	fetch, _ := counter("v")
	if _, err := Get(context.Background(), first, "line_details_3", fetch, p); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	if !store.has(DefaultPrefix+"line_details_3") || !store.has(DefaultPrefix+"timestamps") {
		t.Fatalf("store = %v", store.data)
	}

	clock.Advance(3 * time.Minute)
	restarted := New(WithStore(store), WithClock(clock.Now))
	defer restarted.Close()

	if st := restarted.Status("line_details_3"); !st.Exists || st.InMemory || st.AgeFormatted() != "180s" {
		t.Fatalf("status before read = %+v (%s)", st, st.AgeFormatted())
	}

	never, calls := failing()
	r, err := Get(context.Background(), restarted, "line_details_3", never, p)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Value != "v1" || r.Source != SourceDurable || r.Age != 3*time.Minute {
		t.Fatalf("Get() = %+v", r)
	}
	if calls.Load() != 0 {
		t.Fatal("durable hit must not fetch")
	}
	if restarted.Len() != 1 {
		t.Fatal("durable hit must repopulate memory")
	}
	if s := restarted.Stats(); s.PersistenceHits != 1 {
		t.Errorf("PersistenceHits = %d", s.PersistenceHits)
	}

	r, _ = Get(context.Background(), restarted, "line_details_3", never, p)
	if r.Source != SourceMemory {
		t.Errorf("second read source = %v", r.Source)
	}
}

func TestGet_DurableTypedDecode(t *testing.T) {
	type bus struct {
		ID   string  `json:"id"`
		Lat  float64 `json:"latitude"`
		Line string  `json:"lineNumber"`
	}
	store := newMemStore()
	p := DefaultPolicy()

	e1 := New(WithStore(store))
	fetch := func(context.Context) ([]bus, error) {
		return []bus{{ID: "b1", Lat: 45.33, Line: "2"}}, nil
	}
	_, _ = Get(context.Background(), e1, "live_buses", fetch, p)
	_ = e1.Close()

	e2 := New(WithStore(store))
	defer e2.Close()
	r, err := Get(context.Background(), e2, "live_buses", func(context.Context) ([]bus, error) {
		return nil, errBoom
	}, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Value) != 1 || r.Value[0].ID != "b1" || r.Value[0].Lat != 45.33 {
		t.Fatalf("decoded = %+v", r.Value)
	}
}

func TestGet_DurableExpiredOrBroken(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		corrupt bool
		failGet bool
	}{
		{name: "expired", advance: 11 * time.Minute},
		{name: "corrupt payload", corrupt: true},
		{name: "store read failure", failGet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			store := newMemStore()
			p := Policy{TTL: 10 * time.Minute, Persist: true}

			e1 := New(WithStore(store), WithClock(clock.Now))
			fetch, _ := counter("v")
			_, _ = Get(context.Background(), e1, "k", fetch, p)
			_ = e1.Close()

			if tt.corrupt {
				store.data[DefaultPrefix+"k"] = "{not json"
			}
			clock.Advance(tt.advance)

			e2 := New(WithStore(store), WithClock(clock.Now))
			defer e2.Close()
			store.failGet = tt.failGet

			fresh, calls := counter("w")
			r, err := Get(context.Background(), e2, "k", fresh, p)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if r.Value != "w1" || calls.Load() != 1 {
				t.Fatalf("Get() = %+v calls=%d, want a fetch", r, calls.Load())
			}
		})
	}
}

func TestEngine_StoreWriteFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	store.failSet = true
	e := New(WithStore(store))
	defer e.Close()

	fetch, _ := counter("v")
	r, err := Get(context.Background(), e, "k", fetch, DefaultPolicy())
	if err != nil || r.Value != "v1" {
		t.Fatalf("Get() = %+v, %v", r, err)
	}
	if len(store.data) != 0 {
		t.Errorf("store = %v", store.data)
	}
}

func TestEngine_NoPersistPolicy(t *testing.T) {
	store := newMemStore()
	e := New(WithStore(store))
	defer e.Close()

	fetch, _ := counter("v")
	_, _ = Get(context.Background(), e, "bus_location_2", fetch, NoPersistPolicy(30*time.Second))
	if store.has(DefaultPrefix + "bus_location_2") {
		t.Fatal("non-persisted key written to the store")
	}
}

func TestEngine_Eviction(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	e := New(WithMaxEntries(3), WithClock(clock.Now), WithStore(store))
	defer e.Close()

	p := Policy{TTL: time.Hour, Persist: true}
	for _, k := range []string{"k1", "k2", "k3", "k4", "k5"} {
		fetch := func(context.Context) (string, error) { return "val-" + k, nil }
		if _, err := Get(context.Background(), e, k, fetch, p); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second)
	}

	if e.Len() != 3 || e.Capacity() != 3 {
		t.Fatalf("Len() = %d, Capacity() = %d, want 3", e.Len(), e.Capacity())
	}
	for _, k := range []string{"k1", "k2"} {
		if st := e.Status(k); st.InMemory || !st.Exists {
			t.Errorf("%s status = %+v, want evicted but tracked", k, st)
		}
	}
	for _, k := range []string{"k3", "k4", "k5"} {
		if !e.Status(k).InMemory {
			t.Errorf("%s should be resident", k)
		}
	}
	if s := e.Stats(); s.Evictions != 2 || s.TrackedKeys != 5 {
		t.Errorf("stats = %+v", s)
	}

	// An evicted key comes back from the durable tier.
	never, calls := failing()
	r, err := Get(context.Background(), e, "k1", never, p)
	if err != nil || r.Value != "val-k1" || r.Source != SourceDurable || calls.Load() != 0 {
		t.Fatalf("Get(k1) = %+v, %v", r, err)
	}

	// The restored key is the oldest written, yet it stays resident and the
	// next oldest resident key makes room.
	if !e.Status("k1").InMemory {
		t.Error("k1 should be resident after a durable read")
	}
	if e.Status("k3").InMemory {
		t.Error("k3 should have been evicted for k1")
	}
	if e.Len() != 3 {
		t.Errorf("Len() = %d, want 3", e.Len())
	}
	r, err = Get(context.Background(), e, "k1", never, p)
	if err != nil || r.Source != SourceMemory {
		t.Fatalf("second Get(k1) = %+v, %v, want memory hit", r, err)
	}
}

func TestEngine_DurableReadAtBound(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	p := Policy{TTL: time.Hour, Persist: true}

	first := New(WithMaxEntries(1), WithClock(clock.Now), WithStore(store))
	for _, k := range []string{"a", "b"} {
		fetch := func(context.Context) (string, error) { return strings.ToUpper(k), nil }
		if _, err := Get(context.Background(), first, k, fetch, p); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second)
	}
	first.Close()

	// A restarted engine restores b, then a, which is older than b.
	e := New(WithMaxEntries(1), WithClock(clock.Now), WithStore(store))
	defer e.Close()
	never, calls := failing()
	for _, k := range []string{"b", "a"} {
		r, err := Get(context.Background(), e, k, never, p)
		if err != nil || r.Source != SourceDurable {
			t.Fatalf("Get(%s) = %+v, %v", k, r, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("fetch calls = %d, want 0", calls.Load())
	}
	if !e.Status("a").InMemory || e.Status("b").InMemory {
		t.Errorf("a = %+v, b = %+v, want only a resident", e.Status("a"), e.Status("b"))
	}
}

func TestEngine_Subscribe(t *testing.T) {
	e := New()
	defer e.Close()
	fetch, _ := counter("v")
	p := DefaultPolicy()

	var got []string
	unsubscribe := Subscribe(e, "all_lines", func(v string) { got = append(got, v) })

	if _, err := Refresh(context.Background(), e, "all_lines", fetch, p); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "v1" {
		t.Fatalf("delivered = %v, want [v1]", got)
	}

	// A memory hit does not notify.
	_, _ = Get(context.Background(), e, "all_lines", fetch, p)
	if len(got) != 1 {
		t.Fatalf("delivered = %v after hit", got)
	}

	unsubscribe()
	unsubscribe()
	_, _ = Refresh(context.Background(), e, "all_lines", fetch, p)
	if len(got) != 1 {
		t.Fatalf("delivered after unsubscribe: %v", got)
	}

	e.mu.Lock()
	_, ok := e.subs["all_lines"]
	e.mu.Unlock()
	if ok {
		t.Error("empty subscriber set should be dropped")
	}
}

func TestEngine_SubscriberIsolation(t *testing.T) {
	e := New()
	defer e.Close()
	fetch, _ := counter("v")

	var first, last int
	e.Subscribe("k", func(any) { first++ })
	e.Subscribe("k", func(any) { panic("subscriber bug") })
	Subscribe(e, "k", func(int) { t.Error("mismatched type delivered") })
	e.Subscribe("k", func(any) { last++ })

	if _, err := Refresh(context.Background(), e, "k", fetch, DefaultPolicy()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if first != 1 || last != 1 {
		t.Fatalf("first=%d last=%d, want 1 each", first, last)
	}
}

func TestEngine_UnsubscribeOnlyRemovesOwnCallback(t *testing.T) {
	e := New()
	defer e.Close()
	fetch, _ := counter("v")

	var a, b int
	unsubA := e.Subscribe("k", func(any) { a++ })
	e.Subscribe("k", func(any) { b++ })
	unsubA()

	_, _ = Refresh(context.Background(), e, "k", fetch, DefaultPolicy())
	if a != 0 || b != 1 {
		t.Fatalf("a=%d b=%d", a, b)
	}
}

func TestEngine_TypeMismatch(t *testing.T) {
	e := New()
	defer e.Close()

	_, _ = Get(context.Background(), e, "k", func(context.Context) (string, error) { return "s", nil }, DefaultPolicy())
	_, err := Get(context.Background(), e, "k", func(context.Context) (int, error) { return 1, nil }, DefaultPolicy())
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestEngine_Clear(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = "keep"
	e := New(WithStore(store))
	defer e.Close()

	p := DefaultPolicy()
	for _, k := range []string{"a", "b"} {
		fetch, _ := counter(k)
		_, _ = Get(context.Background(), e, k, fetch, p)
	}

	if err := e.Clear(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if st := e.Status("a"); st.Exists || st.InMemory {
		t.Errorf("status(a) = %+v", st)
	}
	if store.has(DefaultPrefix + "a") {
		t.Error("durable value for a survived Clear")
	}
	if !e.Status("b").InMemory {
		t.Error("Clear(a) touched b")
	}

	e.ClearAll(context.Background())
	if e.Len() != 0 || e.Stats().TrackedKeys != 0 {
		t.Errorf("ClearAll left state: %+v", e.Stats())
	}
	for k := range store.data {
		if strings.HasPrefix(k, DefaultPrefix) {
			t.Errorf("durable key %q survived ClearAll", k)
		}
	}
	if !store.has("unrelated") {
		t.Error("ClearAll removed a key outside the prefix")
	}

	if err := e.Clear(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Clear(\"\") = %v", err)
	}
}

func TestEngine_ClearMatching(t *testing.T) {
	store := newMemStore()
	// Left behind by an earlier process and no longer in the index.
	store.data[DefaultPrefix+"line_details_orphan"] = `"old"`
	e := New(WithStore(store))
	defer e.Close()

	p := DefaultPolicy()
	for _, k := range []string{"line_details_7", "line_details_9", "live_buses"} {
		fetch, _ := counter(k)
		if _, err := Get(context.Background(), e, k, fetch, p); err != nil {
			t.Fatal(err)
		}
	}

	n := e.ClearMatching(context.Background(), func(key string) bool {
		return strings.HasPrefix(key, "line_details_")
	})
	if n != 3 {
		t.Errorf("ClearMatching removed %d keys, want 3", n)
	}
	for _, k := range []string{"line_details_7", "line_details_9", "line_details_orphan"} {
		if st := e.Status(k); st.Exists || st.InMemory {
			t.Errorf("status(%s) = %+v", k, st)
		}
		if store.has(DefaultPrefix + k) {
			t.Errorf("durable value for %s survived", k)
		}
	}
	if !e.Status("live_buses").InMemory || !store.has(DefaultPrefix+"live_buses") {
		t.Error("ClearMatching touched a key it did not match")
	}
	if idx := store.data[DefaultPrefix+indexKey]; strings.Contains(idx, "line_details_") {
		t.Errorf("index still tracks cleared keys: %s", idx)
	}

	if n := e.ClearMatching(context.Background(), nil); n != 0 {
		t.Errorf("ClearMatching(nil) = %d", n)
	}
}
func TestEngine_InvalidInput(t *testing.T) {
	e := New()
	fetch, _ := counter("v")

	if _, err := Get(context.Background(), e, "", fetch, DefaultPolicy()); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty key: %v", err)
	}
	if _, err := Get[string](context.Background(), e, "k", nil, DefaultPolicy()); !errors.Is(err, ErrNilFetcher) {
		t.Errorf("nil fetcher: %v", err)
	}

	_ = e.Close()
	if _, err := Get(context.Background(), e, "k", fetch, DefaultPolicy()); !errors.Is(err, ErrClosed) {
		t.Errorf("closed Get: %v", err)
	}
	if _, err := Refresh(context.Background(), e, "k", fetch, DefaultPolicy()); !errors.Is(err, ErrClosed) {
		t.Errorf("closed Refresh: %v", err)
	}
}

func TestEngine_CloseInterruptsRefreshDelay(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now), WithRefreshDelay(time.Hour))
	fetch, calls := counter("v")
	p := Policy{TTL: time.Minute, RefreshThreshold: time.Minute, BackgroundRefresh: true}

	_, _ = Get(context.Background(), e, "k", fetch, p)
	clock.Advance(time.Second)
	_, _ = Get(context.Background(), e, "k", fetch, p)

	done := make(chan struct{})
	go func() {
		_ = e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not interrupt the refresh delay")
	}
	if calls.Load() != 1 {
		t.Errorf("delayed refresh ran after Close: calls=%d", calls.Load())
	}
}

func TestEngine_Preload(t *testing.T) {
	e := New()
	defer e.Close()

	good, _ := counter("v")
	bad, _ := failing()
	results := e.Preload(context.Background(), []PreloadItem{
		NewPreloadItem("live_buses", good, DefaultPolicy()),
		NewPreloadItem("all_lines", bad, DefaultPolicy()),
		{Key: "broken"},
	})

	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if results["live_buses"] != nil {
		t.Errorf("live_buses: %v", results["live_buses"])
	}
	if !errors.Is(results["all_lines"], errBoom) {
		t.Errorf("all_lines: %v", results["all_lines"])
	}
	if !errors.Is(results["broken"], ErrNilFetcher) {
		t.Errorf("broken: %v", results["broken"])
	}
	if !e.Status("live_buses").InMemory {
		t.Error("successful preload should be cached")
	}
}

func TestEngine_LoadIndex(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.data[DefaultPrefix+indexKey] = fmt.Sprintf(`{"live_buses":%d}`, clock.Now().Add(-time.Minute).UnixMilli())
	e := New(WithStore(store), WithClock(clock.Now))
	defer e.Close()

	e.LoadIndex(context.Background())
	gets := store.getCount()
	if gets != 1 {
		t.Fatalf("store reads after LoadIndex = %d, want 1", gets)
	}

	st := e.Status("live_buses")
	if !st.Exists || st.InMemory || st.Age != time.Minute {
		t.Errorf("Status() = %+v", st)
	}
	if s := e.Stats(); s.TrackedKeys != 1 {
		t.Errorf("TrackedKeys = %d, want 1", s.TrackedKeys)
	}
	e.LoadIndex(context.Background())
	if n := store.getCount(); n != gets {
		t.Errorf("introspection read the store %d more times", n-gets)
	}
}

func TestEngine_StatsAndStatus(t *testing.T) {
	clock := newFakeClock()
	e := New(WithClock(clock.Now))
	defer e.Close()

	if s := e.Stats(); s.HitRate != 0 {
		t.Errorf("HitRate before reads = %v", s.HitRate)
	}
	fetch, _ := counter("v")
	p := Policy{TTL: time.Hour}
	for i := 0; i < 4; i++ {
		_, _ = Get(context.Background(), e, "k", fetch, p)
	}
	if s := e.Stats(); s.HitRate != 75 || s.MemoryEntries != 1 {
		t.Errorf("stats = %+v", s)
	}

	clock.Advance(12400 * time.Millisecond)
	st := e.Status("k")
	if !st.Exists || !st.InMemory || st.AgeFormatted() != "12s" {
		t.Errorf("status = %+v (%s)", st, st.AgeFormatted())
	}
	if missing := e.Status("nope"); missing.Exists || missing.AgeFormatted() != "" {
		t.Errorf("missing status = %+v", missing)
	}
}

func TestSource_String(t *testing.T) {
	tests := map[Source]string{
		SourceMemory:  "memory",
		SourceDurable: "durable",
		SourceFetched: "fetched",
		SourceStale:   "stale",
		Source(0):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

type countingMetrics struct {
	NoopMetrics
	mu      sync.Mutex
	hits    int
	misses  int
	fetches int
	errs    int
	evicted int
}

func (m *countingMetrics) Hit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *countingMetrics) Miss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *countingMetrics) Fetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if err != nil {
		m.errs++
	}
}

func (m *countingMetrics) Evict(n int) {
	m.mu.Lock()
	m.evicted += n
	m.mu.Unlock()
}

func TestEngine_MetricsHook(t *testing.T) {
	m := &countingMetrics{}
	e := New(WithMetrics(m), WithMaxEntries(1))
	defer e.Close()

	fetch, _ := counter("v")
	_, _ = Get(context.Background(), e, "a", fetch, DefaultPolicy())
	_, _ = Get(context.Background(), e, "a", fetch, DefaultPolicy())
	_, _ = Get(context.Background(), e, "b", fetch, DefaultPolicy())
	bad, _ := failing()
	_, _ = Get(context.Background(), e, "c", bad, DefaultPolicy())
	e.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits < 1 || m.misses != 3 || m.errs != 1 || m.evicted != 1 {
		t.Errorf("metrics = hits:%d misses:%d fetches:%d errs:%d evicted:%d",
			m.hits, m.misses, m.fetches, m.errs, m.evicted)
	}
}
