package buscache

import (
	"fmt"
	"time"

	"github.com/jonwraymond/transitcache/cache"
)

// Dataset names one upstream data shape.
type Dataset string

const (
	LiveBuses    Dataset = "liveBuses"
	AllLines     Dataset = "allLines"
	LineDetails  Dataset = "lineDetails"
	LiveSchedule Dataset = "liveSchedule"
	BusSchedule  Dataset = "busSchedule"
	BusRides     Dataset = "busRides"
	BusLocation  Dataset = "busLocation"
	BusLines     Dataset = "busLines"
	Stations     Dataset = "stations"
)

// Datasets lists every dataset in a stable order.
var Datasets = []Dataset{
	LiveBuses, AllLines, LineDetails, LiveSchedule,
	BusSchedule, BusRides, BusLocation, BusLines, Stations,
}

// Policies maps each dataset to its cache policy.
type Policies map[Dataset]cache.Policy

// DefaultPolicies returns the built-in per-dataset policies.
//
// All datasets refresh in the background. Vehicle locations are never
// persisted.
func DefaultPolicies() Policies {
	p := func(ttl time.Duration, persist bool) cache.Policy {
		return cache.Policy{
			TTL:               ttl,
			RefreshThreshold:  cache.DefaultRefreshThreshold,
			BackgroundRefresh: true,
			Persist:           persist,
		}
	}
	return Policies{
		LiveBuses:    p(30*time.Second, true),
		AllLines:     p(60*time.Minute, true),
		LineDetails:  p(10*time.Minute, true),
		LiveSchedule: p(1*time.Minute, true),
		BusSchedule:  p(5*time.Minute, true),
		BusRides:     p(2*time.Minute, true),
		BusLocation:  p(30*time.Second, false),
		BusLines:     p(60*time.Minute, true),
		Stations:     p(24*time.Hour, true),
	}
}

// Policy returns the policy for d, falling back to the built-in one when
// p has no entry.
func (p Policies) Policy(d Dataset) cache.Policy {
	if pol, ok := p[d]; ok {
		return pol
	}
	return DefaultPolicies()[d]
}

// Validate reports datasets with a negative TTL or threshold.
func (p Policies) Validate() error {
	for d, pol := range p {
		if pol.TTL < 0 || pol.RefreshThreshold < 0 {
			return fmt.Errorf("buscache: dataset %q: negative duration", d)
		}
	}
	return nil
}
