package cron

import (
	"context"
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type fakeTakeoffStore struct {
	takeoffs []sqlite.FlightEvent
	updates  []takeoffUpdate
}

type takeoffUpdate struct {
	id   int64
	ts   int64
	lat  float64
	lon  float64
	icao string
}

func (f *fakeTakeoffStore) ListRecentTakeoffs(since int64) ([]sqlite.FlightEvent, error) {
	return f.takeoffs, nil
}

func (f *fakeTakeoffStore) UpdateTakeoff(id int64, ts int64, lat, lon float64, icao string) error {
	f.updates = append(f.updates, takeoffUpdate{id: id, ts: ts, lat: lat, lon: lon, icao: icao})
	for i := range f.takeoffs {
		if f.takeoffs[i].ID == id {
			f.takeoffs[i].Ts = ts
			f.takeoffs[i].Lat = lat
			f.takeoffs[i].Lon = lon
			f.takeoffs[i].Location = icao
		}
	}
	return nil
}

type fakePositionSource struct {
	last   *influx.Sample
	window []influx.Sample
	track  []influx.Sample
}

func (f *fakePositionSource) LastPosition(addr string) (*influx.Sample, error) {
	return f.last, nil
}

func (f *fakePositionSource) Window(addr string, start, end int64) ([]influx.Sample, error) {
	return f.window, nil
}

func (f *fakePositionSource) Track(addr string, start, end int64) ([]influx.Sample, error) {
	return f.track, nil
}

func sampleAt(ts int64, gs float64) influx.Sample {
	return influx.Sample{
		Time: time.Unix(ts, 0).UTC(),
		GS:   gs,
		Lat:  49.3 + float64(ts%100)/10000,
		Lon:  16.1,
	}
}

func TestRefinerMovesTakeoffToSpeedMinimum(t *testing.T) {
	store := &fakeTakeoffStore{takeoffs: []sqlite.FlightEvent{{
		ID: 1, Ts: 1000, Address: "DD1234", AddressType: ogn.AddressTypeOgn, Event: sqlite.EventTakeoff,
	}}}
	// Newest first; equal minima at 990 and 980, the <= comparison keeps
	// the later-scanned (older) one.
	positions := &fakePositionSource{window: []influx.Sample{
		sampleAt(998, 50), sampleAt(990, 45), sampleAt(980, 45), sampleAt(970, 60),
	}}

	refiner := NewTakeoffRefiner(time.Minute, store, positions, nil, logger.NewNop())
	refiner.Run(context.Background())

	if len(store.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(store.updates))
	}
	if store.updates[0].ts != 980 {
		t.Errorf("refined ts = %d, want 980", store.updates[0].ts)
	}
}

func TestRefinerEarlyExitsAtTaxiSpeed(t *testing.T) {
	store := &fakeTakeoffStore{takeoffs: []sqlite.FlightEvent{{
		ID: 1, Ts: 1000, Address: "DD1234", AddressType: ogn.AddressTypeOgn, Event: sqlite.EventTakeoff,
	}}}
	// The 35 km/h sample stops the scan; the slower 10 km/h sample behind
	// it is never considered.
	positions := &fakePositionSource{window: []influx.Sample{
		sampleAt(998, 35), sampleAt(990, 10),
	}}

	refiner := NewTakeoffRefiner(time.Minute, store, positions, nil, logger.NewNop())
	refiner.Run(context.Background())

	if len(store.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(store.updates))
	}
	if store.updates[0].ts != 998 {
		t.Errorf("refined ts = %d, want 998", store.updates[0].ts)
	}
}

func TestRefinerIdempotent(t *testing.T) {
	store := &fakeTakeoffStore{takeoffs: []sqlite.FlightEvent{{
		ID: 1, Ts: 1000, Address: "DD1234", AddressType: ogn.AddressTypeOgn, Event: sqlite.EventTakeoff,
	}}}
	positions := &fakePositionSource{window: []influx.Sample{
		sampleAt(998, 50), sampleAt(985, 45), sampleAt(970, 60),
	}}

	refiner := NewTakeoffRefiner(time.Minute, store, positions, nil, logger.NewNop())
	refiner.Run(context.Background())
	refiner.Run(context.Background())

	if len(store.updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(store.updates))
	}
	if store.updates[0] != store.updates[1] {
		t.Errorf("second run diverged: %+v vs %+v", store.updates[0], store.updates[1])
	}
}

func TestRefinerResolvesUnknownAirfield(t *testing.T) {
	store := &fakeTakeoffStore{takeoffs: []sqlite.FlightEvent{{
		ID: 1, Ts: 1000, Address: "DD1234", AddressType: ogn.AddressTypeOgn, Event: sqlite.EventTakeoff,
	}}}
	positions := &fakePositionSource{window: []influx.Sample{sampleAt(990, 30)}}
	airfields := geo.NewAirfieldIndex([]geo.AirfieldRecord{
		geo.NewAirfieldRecord("LKKA", 49.3697, 16.1144),
	})

	refiner := NewTakeoffRefiner(time.Minute, store, positions, airfields, logger.NewNop())
	refiner.Run(context.Background())

	if len(store.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(store.updates))
	}
	if store.updates[0].icao != "LKKA" {
		t.Errorf("resolved airfield = %q, want LKKA", store.updates[0].icao)
	}
}
