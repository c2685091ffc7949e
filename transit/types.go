package transit

// Bus is a live vehicle position.
type Bus struct {
	ID            string  `json:"id"`
	LineNumber    string  `json:"lineNumber"`
	Route         string  `json:"route"`
	Destination   string  `json:"destination"`
	Direction     string  `json:"direction"`
	DirectionName string  `json:"directionName"`
	Status        string  `json:"status"`
	NextStop      string  `json:"nextStop"`
	ArrivalTime   string  `json:"arrivalTime"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	BusNumber     string  `json:"busNumber"`
	TripID        string  `json:"tripId"`
}

// Coordinates is a station position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Departure is one scheduled stop of a trip.
type Departure struct {
	ID           string       `json:"id"`
	Time         string       `json:"time"`
	Stop         string       `json:"stop"`
	Description  string       `json:"description"`
	Arrival      string       `json:"arrival"`
	StationID    int64        `json:"stationId"`
	TripID       int64        `json:"tripId"`
	RideID       int64        `json:"rideId"`
	BusID        int64        `json:"busId"`
	LineID       int64        `json:"lineId"`
	UniqueLineID string       `json:"uniqueLineId"`
	Coordinates  *Coordinates `json:"coordinates"`
}

// Ride groups the departures of one vehicle run.
type Ride struct {
	RideID         int64       `json:"rideId"`
	BusID          int64       `json:"busId"`
	LineNumber     string      `json:"lineNumber"`
	LineID         int64       `json:"lineId"`
	FirstDeparture string      `json:"firstDeparture"`
	LastDeparture  string      `json:"lastDeparture"`
	StationCount   int         `json:"stationCount"`
	Departures     []Departure `json:"departures"`
	Title          string      `json:"title"`
}

// Location is the last known position of a line's vehicle.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     string  `json:"speed"`
	Direction string  `json:"direction"`
	BusNumber string  `json:"busNumber,omitempty"`
	TripID    string  `json:"tripId,omitempty"`
}

// Line is one directed line variant.
type Line struct {
	ID            int64  `json:"id"`
	LineNumber    string `json:"lineNumber"`
	Name          string `json:"name"`
	Direction     int64  `json:"direction"`
	DirectionName string `json:"directionName"`
	UniqueID      string `json:"uniqueId"`
}

// LineDetails is a line with its stops and today's departures.
type LineDetails struct {
	Line       Line        `json:"line"`
	Stations   []Station   `json:"stations"`
	Departures []Departure `json:"departures"`
}

// Station is a stop.
type Station struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ShortName   string  `json:"shortName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Direction   string  `json:"direction"`
	DirectionID int64   `json:"directionId"`
}
