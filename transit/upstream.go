package transit

import "context"

// Upstream is the transit data source.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation/deadlines.
// - Errors: any failure is returned as an error; callers decide on fallbacks.
type Upstream interface {
	GetLiveBuses(ctx context.Context) ([]Bus, error)
	GetAllLines(ctx context.Context) ([]Line, error)
	GetLineDetails(ctx context.Context, lineID string) (*LineDetails, error)
	GetLiveSchedule(ctx context.Context, lineID string) ([]Departure, error)
	GetBusSchedule(ctx context.Context, lineNumber string) ([]Departure, error)
	GetBusScheduleByRides(ctx context.Context, lineNumber string) ([]Ride, error)
	GetBusLocation(ctx context.Context, lineNumber string) (*Location, error)
	GetBusLines(ctx context.Context) ([]Line, error)
	GetStations(ctx context.Context) ([]Station, error)
}
