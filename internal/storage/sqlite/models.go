package sqlite

import "github.com/ibisek/ogn-logbook/internal/ogn"

// EventKind distinguishes takeoff and landing events.
type EventKind string

const (
	EventTakeoff EventKind = "T"
	EventLanding EventKind = "L"
)

// FlightEvent is one takeoff or landing detected for an aircraft.
type FlightEvent struct {
	ID           int64           `json:"id"`
	Ts           int64           `json:"ts"`
	Address      string          `json:"address"`
	AddressType  ogn.AddressType `json:"address_type"`
	AircraftType int             `json:"aircraft_type"`
	Event        EventKind       `json:"event"`
	Lat          float64         `json:"lat"`
	Lon          float64         `json:"lon"`
	Location     string          `json:"location_icao,omitempty"`
	FlightTime   int64           `json:"flight_time,omitempty"` // [s], landings only
}

// FlightEntry is one completed flight, paired from a takeoff and the
// landing that follows it.
type FlightEntry struct {
	ID           int64           `json:"id"`
	Address      string          `json:"address"`
	AddressType  ogn.AddressType `json:"address_type"`
	AircraftType int             `json:"aircraft_type"`
	TakeoffTs    *int64          `json:"takeoff_ts,omitempty"`
	TakeoffLat   *float64        `json:"takeoff_lat,omitempty"`
	TakeoffLon   *float64        `json:"takeoff_lon,omitempty"`
	TakeoffIcao  *string         `json:"takeoff_icao,omitempty"`
	LandingTs    *int64          `json:"landing_ts,omitempty"`
	LandingLat   *float64        `json:"landing_lat,omitempty"`
	LandingLon   *float64        `json:"landing_lon,omitempty"`
	LandingIcao  *string         `json:"landing_icao,omitempty"`
	FlightTime   int64           `json:"flight_time"`
	FlownDistKm  *int64          `json:"flown_distance,omitempty"`
}
