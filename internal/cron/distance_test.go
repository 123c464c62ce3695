package cron

import (
	"context"
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type fakeFlightStore struct {
	flights  []sqlite.FlightEntry
	computed map[int64]int64
}

func (f *fakeFlightStore) ListUncomputedFlights(since int64, limit int) ([]sqlite.FlightEntry, error) {
	var recent []sqlite.FlightEntry
	for _, fl := range f.flights {
		if fl.LandingTs != nil && *fl.LandingTs >= since {
			recent = append(recent, fl)
		}
	}
	return recent, nil
}

func (f *fakeFlightStore) SetFlownDistance(id int64, km int64) error {
	if f.computed == nil {
		f.computed = make(map[int64]int64)
	}
	f.computed[id] = km
	return nil
}

func flightEntry(id int64, takeoff, landing int64) sqlite.FlightEntry {
	return sqlite.FlightEntry{
		ID:          id,
		Address:     "DD1234",
		AddressType: ogn.AddressTypeOgn,
		TakeoffTs:   &takeoff,
		LandingTs:   &landing,
	}
}

func newDistanceCalc(store *fakeFlightStore, positions *fakePositionSource, now int64) *DistanceCalculator {
	calc := NewDistanceCalculator(10*time.Second, store, positions, logger.NewNop())
	calc.now = func() time.Time { return time.Unix(now, 0) }
	return calc
}

func TestDistanceEmptyTrackPersistsZero(t *testing.T) {
	store := &fakeFlightStore{flights: []sqlite.FlightEntry{flightEntry(1, 1000, 2000)}}
	positions := &fakePositionSource{track: nil}

	calc := newDistanceCalc(store, positions, 2010)
	calc.Run(context.Background())

	km, ok := store.computed[1]
	if !ok {
		t.Fatal("distance was not persisted for an empty track")
	}
	if km != 0 {
		t.Errorf("distance = %d, want 0", km)
	}
}

func TestDistanceSumsTrackSegments(t *testing.T) {
	store := &fakeFlightStore{flights: []sqlite.FlightEntry{flightEntry(1, 1000, 2000)}}
	// One degree of latitude twice, roughly 111 km each leg.
	positions := &fakePositionSource{track: []influx.Sample{
		{Lat: 49.0, Lon: 16.0},
		{Lat: 50.0, Lon: 16.0},
		{Lat: 51.0, Lon: 16.0},
	}}

	calc := newDistanceCalc(store, positions, 2010)
	calc.Run(context.Background())

	km := store.computed[1]
	if km < 220 || km > 225 {
		t.Errorf("distance = %d, want roughly 222", km)
	}
}

func TestDistanceSkipsIncompleteFlights(t *testing.T) {
	landing := int64(2000)
	store := &fakeFlightStore{flights: []sqlite.FlightEntry{{
		ID:        1,
		Address:   "DD1234",
		LandingTs: &landing, // no takeoff recorded
	}}}
	positions := &fakePositionSource{}

	calc := newDistanceCalc(store, positions, 2010)
	calc.Run(context.Background())

	if len(store.computed) != 0 {
		t.Errorf("computed distances for incomplete flights: %v", store.computed)
	}
}

func TestDistanceIgnoresOldLandings(t *testing.T) {
	now := int64(1_000_000)
	store := &fakeFlightStore{flights: []sqlite.FlightEntry{
		flightEntry(1, now-864_100, now-864_000), // landed ten days ago
		flightEntry(2, now-600, now-15),
	}}
	positions := &fakePositionSource{track: []influx.Sample{
		{Lat: 49.0, Lon: 16.0},
		{Lat: 49.1, Lon: 16.0},
	}}

	calc := newDistanceCalc(store, positions, now)
	calc.Run(context.Background())

	if _, ok := store.computed[1]; ok {
		t.Error("computed distance for a flight landed outside the window")
	}
	if _, ok := store.computed[2]; !ok {
		t.Error("fresh landing was not computed")
	}
}
