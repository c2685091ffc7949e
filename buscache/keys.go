package buscache

import "strings"

// Fixed keys and per-identifier key prefixes. Keys are stored under the
// engine prefix, so these stay short.
const (
	KeyLiveBuses = "live_buses"
	KeyAllLines  = "all_lines"
	KeyBusLines  = "bus_lines"
	KeyStations  = "stations"

	prefixLineDetails  = "line_details_"
	prefixLiveSchedule = "live_schedule_"
	prefixBusSchedule  = "bus_schedule_"
	prefixBusRides     = "bus_schedule_rides_"
	prefixBusLocation  = "bus_location_"
)

// LineDetailsKey returns the key for one line's details.
func LineDetailsKey(lineID string) string { return prefixLineDetails + lineID }

// LiveScheduleKey returns the key for one line's live schedule.
func LiveScheduleKey(lineID string) string { return prefixLiveSchedule + lineID }

// BusScheduleKey returns the key for one line number's schedule.
func BusScheduleKey(lineNumber string) string { return prefixBusSchedule + lineNumber }

// BusRidesKey returns the key for one line number's rides.
func BusRidesKey(lineNumber string) string { return prefixBusRides + lineNumber }

// BusLocationKey returns the key for one line number's vehicle location.
func BusLocationKey(lineNumber string) string { return prefixBusLocation + lineNumber }

// fixedKeys are the datasets addressed without an identifier.
var fixedKeys = map[Dataset]string{
	LiveBuses: KeyLiveBuses,
	AllLines:  KeyAllLines,
	BusLines:  KeyBusLines,
	Stations:  KeyStations,
}

// KeyFor returns the fixed key of d, or false for datasets that need an
// identifier.
func KeyFor(d Dataset) (string, bool) {
	k, ok := fixedKeys[d]
	return k, ok
}

// keyPrefixes are the datasets addressed by an identifier.
var keyPrefixes = map[Dataset]string{
	LineDetails:  prefixLineDetails,
	LiveSchedule: prefixLiveSchedule,
	BusSchedule:  prefixBusSchedule,
	BusRides:     prefixBusRides,
	BusLocation:  prefixBusLocation,
}

// DatasetOf returns the dataset a cache key belongs to. Per-identifier keys
// resolve by their longest matching prefix, so "bus_schedule_rides_4" is a
// BusRides key and not a BusSchedule one.
func DatasetOf(key string) (Dataset, bool) {
	for d, k := range fixedKeys {
		if k == key {
			return d, true
		}
	}
	var (
		match Dataset
		best  int
	)
	for d, prefix := range keyPrefixes {
		if len(prefix) > best && len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			match, best = d, len(prefix)
		}
	}
	return match, best > 0
}
