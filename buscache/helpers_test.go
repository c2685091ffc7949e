package buscache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/transit"
)

var errUpstream = errors.New("upstream down")

// fakeUpstream serves canned data and counts calls per method.
type fakeUpstream struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
	// failFor fails only the named methods.
	failFor map[string]bool
	// failTimes fails the named methods that many more times.
	failTimes map[string]int
	// version is appended to names so refreshed data is distinguishable.
	version int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		calls:     make(map[string]int),
		failFor:   make(map[string]bool),
		failTimes: make(map[string]int),
	}
}

func (f *fakeUpstream) enter(method string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.fail || f.failFor[method] {
		return 0, errUpstream
	}
	if n := f.failTimes[method]; n > 0 {
		f.failTimes[method] = n - 1
		return 0, errUpstream
	}
	f.version++
	return f.version, nil
}

func (f *fakeUpstream) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeUpstream) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeUpstream) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeUpstream) GetLiveBuses(context.Context) ([]transit.Bus, error) {
	v, err := f.enter("GetLiveBuses")
	if err != nil {
		return nil, err
	}
	return []transit.Bus{{ID: "bus", LineNumber: "2", BusNumber: strconv.Itoa(v)}}, nil
}

func (f *fakeUpstream) GetAllLines(context.Context) ([]transit.Line, error) {
	v, err := f.enter("GetAllLines")
	if err != nil {
		return nil, err
	}
	return []transit.Line{{ID: 1, LineNumber: "2", Name: "line-" + strconv.Itoa(v)}}, nil
}

func (f *fakeUpstream) GetLineDetails(_ context.Context, id string) (*transit.LineDetails, error) {
	if _, err := f.enter("GetLineDetails"); err != nil {
		return nil, err
	}
	return &transit.LineDetails{Line: transit.Line{UniqueID: id}}, nil
}

func (f *fakeUpstream) GetLiveSchedule(_ context.Context, id string) ([]transit.Departure, error) {
	if _, err := f.enter("GetLiveSchedule"); err != nil {
		return nil, err
	}
	return []transit.Departure{{ID: id}}, nil
}

func (f *fakeUpstream) GetBusSchedule(_ context.Context, line string) ([]transit.Departure, error) {
	if _, err := f.enter("GetBusSchedule"); err != nil {
		return nil, err
	}
	return []transit.Departure{{ID: line}}, nil
}

func (f *fakeUpstream) GetBusScheduleByRides(_ context.Context, line string) ([]transit.Ride, error) {
	if _, err := f.enter("GetBusScheduleByRides"); err != nil {
		return nil, err
	}
	return []transit.Ride{{LineNumber: line}}, nil
}

func (f *fakeUpstream) GetBusLocation(_ context.Context, line string) (*transit.Location, error) {
	if _, err := f.enter("GetBusLocation"); err != nil {
		return nil, err
	}
	return &transit.Location{BusNumber: line}, nil
}

func (f *fakeUpstream) GetBusLines(context.Context) ([]transit.Line, error) {
	if _, err := f.enter("GetBusLines"); err != nil {
		return nil, err
	}
	return []transit.Line{{ID: 1}, {ID: 2}}, nil
}

func (f *fakeUpstream) GetStations(context.Context) ([]transit.Station, error) {
	if _, err := f.enter("GetStations"); err != nil {
		return nil, err
	}
	return []transit.Station{{ID: 1, Name: "Delta"}}, nil
}

// fakeClock is a manually advanced clock.
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

// noBackground disables stale-while-revalidate for every dataset so call
// counts stay deterministic.
func noBackground() Policies {
	p := DefaultPolicies()
	for d, pol := range p {
		pol.BackgroundRefresh = false
		p[d] = pol
	}
	return p
}

// newTestService builds a Service over a fresh engine without maintenance.
func newTestService(t *testing.T, up *fakeUpstream, clock *fakeClock, opts ...Option) *Service {
	t.Helper()
	engineOpts := []cache.Option{}
	if clock != nil {
		engineOpts = append(engineOpts, cache.WithClock(clock.Now))
	}
	engine := cache.New(engineOpts...)
	opts = append([]Option{WithoutMaintenance(), WithPolicies(noBackground())}, opts...)
	svc := New(engine, up, opts...)
	t.Cleanup(func() {
		_ = svc.Close()
		_ = engine.Close()
	})
	return svc
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
