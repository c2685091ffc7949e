package buscache

import (
	"context"

	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/transit"
)

// GetLiveBuses returns live vehicle positions, or an empty slice.
func (s *Service) GetLiveBuses(ctx context.Context) []transit.Bus {
	return orEmpty(read(ctx, s, LiveBuses, KeyLiveBuses, s.upstream.GetLiveBuses))
}

// GetAllLines returns the line catalog, or an empty slice.
func (s *Service) GetAllLines(ctx context.Context) []transit.Line {
	return orEmpty(read(ctx, s, AllLines, KeyAllLines, s.upstream.GetAllLines))
}

// GetLineDetails returns one line's details, or nil.
func (s *Service) GetLineDetails(ctx context.Context, lineID string) *transit.LineDetails {
	if lineID == "" {
		return nil
	}
	return read(ctx, s, LineDetails, LineDetailsKey(lineID), func(ctx context.Context) (*transit.LineDetails, error) {
		return s.upstream.GetLineDetails(ctx, lineID)
	})
}

// GetLiveSchedule returns one line's departures for today, or an empty slice.
func (s *Service) GetLiveSchedule(ctx context.Context, lineID string) []transit.Departure {
	if lineID == "" {
		return []transit.Departure{}
	}
	return orEmpty(read(ctx, s, LiveSchedule, LiveScheduleKey(lineID), func(ctx context.Context) ([]transit.Departure, error) {
		return s.upstream.GetLiveSchedule(ctx, lineID)
	}))
}

// GetBusSchedule returns a line number's schedule, or an empty slice.
func (s *Service) GetBusSchedule(ctx context.Context, lineNumber string) []transit.Departure {
	if lineNumber == "" {
		return []transit.Departure{}
	}
	return orEmpty(read(ctx, s, BusSchedule, BusScheduleKey(lineNumber), func(ctx context.Context) ([]transit.Departure, error) {
		return s.upstream.GetBusSchedule(ctx, lineNumber)
	}))
}

// GetBusScheduleByRides returns a line number's rides, or an empty slice.
func (s *Service) GetBusScheduleByRides(ctx context.Context, lineNumber string) []transit.Ride {
	if lineNumber == "" {
		return []transit.Ride{}
	}
	return orEmpty(read(ctx, s, BusRides, BusRidesKey(lineNumber), func(ctx context.Context) ([]transit.Ride, error) {
		return s.upstream.GetBusScheduleByRides(ctx, lineNumber)
	}))
}

// GetBusLocation returns the last known position for a line number, or nil.
func (s *Service) GetBusLocation(ctx context.Context, lineNumber string) *transit.Location {
	if lineNumber == "" {
		return nil
	}
	return read(ctx, s, BusLocation, BusLocationKey(lineNumber), func(ctx context.Context) (*transit.Location, error) {
		return s.upstream.GetBusLocation(ctx, lineNumber)
	})
}

// GetBusLines returns the alternative line listing, or an empty slice.
func (s *Service) GetBusLines(ctx context.Context) []transit.Line {
	return orEmpty(read(ctx, s, BusLines, KeyBusLines, s.upstream.GetBusLines))
}

// GetStations returns all stops, or an empty slice.
func (s *Service) GetStations(ctx context.Context) []transit.Station {
	return orEmpty(read(ctx, s, Stations, KeyStations, s.upstream.GetStations))
}

// RefreshLiveBuses fetches live buses regardless of age.
func (s *Service) RefreshLiveBuses(ctx context.Context) ([]transit.Bus, error) {
	return refresh(ctx, s, LiveBuses, KeyLiveBuses, s.upstream.GetLiveBuses)
}

// RefreshAllLines fetches the line catalog regardless of age.
func (s *Service) RefreshAllLines(ctx context.Context) ([]transit.Line, error) {
	return refresh(ctx, s, AllLines, KeyAllLines, s.upstream.GetAllLines)
}

// RefreshLineDetails fetches one line's details regardless of age. An empty
// lineID returns nil without fetching.
func (s *Service) RefreshLineDetails(ctx context.Context, lineID string) (*transit.LineDetails, error) {
	if lineID == "" {
		return nil, nil
	}
	return refresh(ctx, s, LineDetails, LineDetailsKey(lineID), func(ctx context.Context) (*transit.LineDetails, error) {
		return s.upstream.GetLineDetails(ctx, lineID)
	})
}

// SubscribeLiveBuses calls fn with every fetched live bus list.
func (s *Service) SubscribeLiveBuses(fn func([]transit.Bus)) (unsubscribe func()) {
	return cache.Subscribe(s.engine, KeyLiveBuses, fn)
}

// SubscribeAllLines calls fn with every fetched line catalog.
func (s *Service) SubscribeAllLines(fn func([]transit.Line)) (unsubscribe func()) {
	return cache.Subscribe(s.engine, KeyAllLines, fn)
}

// SubscribeLineDetails calls fn with every fetch of one line's details.
func (s *Service) SubscribeLineDetails(lineID string, fn func(*transit.LineDetails)) (unsubscribe func()) {
	if lineID == "" {
		return func() {}
	}
	return cache.Subscribe(s.engine, LineDetailsKey(lineID), fn)
}
