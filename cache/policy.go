package cache

import "time"

// Engine-wide defaults.
const (
	DefaultTTL              = 5 * time.Minute
	DefaultRefreshThreshold = 2 * time.Minute
	DefaultMaxEntries       = 100
	DefaultPrefix           = "RiBus_Cache_"
)

// Policy configures how one call treats its key. Policies are supplied per
// call and never stored with an entry, so they can change between calls.
type Policy struct {
	// TTL is the age after which an entry is no longer served as fresh.
	// Zero means the engine default.
	TTL time.Duration

	// RefreshThreshold controls stale-while-revalidate: a fresh entry older
	// than TTL-RefreshThreshold triggers a background refresh when read.
	// Zero means the engine default.
	RefreshThreshold time.Duration

	// BackgroundRefresh enables stale-while-revalidate for the key.
	BackgroundRefresh bool

	// Persist writes successful fetches through to the durable store.
	Persist bool
}

// DefaultPolicy returns the default policy.
// TTL: 5 minutes, RefreshThreshold: 2 minutes, background refresh and
// persistence enabled.
func DefaultPolicy() Policy {
	return Policy{
		TTL:               DefaultTTL,
		RefreshThreshold:  DefaultRefreshThreshold,
		BackgroundRefresh: true,
		Persist:           true,
	}
}

// NoPersistPolicy returns a memory-only policy with the given TTL.
func NoPersistPolicy(ttl time.Duration) Policy {
	return Policy{
		TTL:               ttl,
		RefreshThreshold:  DefaultRefreshThreshold,
		BackgroundRefresh: true,
	}
}

// withDefaults fills zero durations from the engine configuration.
func (p Policy) withDefaults(ttl, threshold time.Duration) Policy {
	if p.TTL <= 0 {
		p.TTL = ttl
	}
	if p.RefreshThreshold <= 0 {
		p.RefreshThreshold = threshold
	}
	return p
}

// Fresh reports whether an entry of the given age may be served.
func (p Policy) Fresh(age time.Duration) bool {
	return age < p.TTL
}

// RefreshDue reports whether serving an entry of the given age should also
// start a background refresh. A threshold at or above the TTL makes every
// read of a fresh entry due.
func (p Policy) RefreshDue(age time.Duration) bool {
	return p.BackgroundRefresh && age > p.TTL-p.RefreshThreshold
}
