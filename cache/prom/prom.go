// Package prom exports cache engine events as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/transitcache/cache"
)

// Metrics implements cache.Metrics on Prometheus collectors.
type Metrics struct {
	requests            *prometheus.CounterVec
	backgroundRefreshes prometheus.Counter
	fetches             *prometheus.CounterVec
	evictions           prometheus.Counter
	entries             prometheus.Gauge
}

var _ cache.Metrics = (*Metrics)(nil)

// New creates the collectors under namespace and registers them on reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache reads by result: hit, miss or persistence_hit.",
		}, []string{"result"}),
		backgroundRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "background_refreshes_total",
			Help:      "Background refreshes scheduled by stale-while-revalidate.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Upstream fetches by outcome: ok or error.",
		}, []string{"outcome"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Memory entries evicted by the size bound.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "memory_entries",
			Help:      "Entries currently held in the memory tier.",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.backgroundRefreshes, m.fetches, m.evictions, m.entries}
}

func (m *Metrics) Hit()               { m.requests.WithLabelValues("hit").Inc() }
func (m *Metrics) Miss()              { m.requests.WithLabelValues("miss").Inc() }
func (m *Metrics) PersistenceHit()    { m.requests.WithLabelValues("persistence_hit").Inc() }
func (m *Metrics) BackgroundRefresh() { m.backgroundRefreshes.Inc() }
func (m *Metrics) Evict(n int)        { m.evictions.Add(float64(n)) }
func (m *Metrics) Size(n int)         { m.entries.Set(float64(n)) }

func (m *Metrics) Fetch(err error) {
	if err != nil {
		m.fetches.WithLabelValues("error").Inc()
		return
	}
	m.fetches.WithLabelValues("ok").Inc()
}
