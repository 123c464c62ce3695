package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/state"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", state.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Keys(_ context.Context, pattern string) ([]string, error) {
	suffix := strings.TrimPrefix(pattern, "*")
	var keys []string
	for k := range f.data {
		if strings.HasSuffix(k, suffix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type fakeLandingStore struct {
	takeoff  *sqlite.FlightEvent
	inserted []sqlite.FlightEvent
}

func (f *fakeLandingStore) FindMostRecentTakeoff(addrType ogn.AddressType, addr string) (*sqlite.FlightEvent, error) {
	return f.takeoff, nil
}

func (f *fakeLandingStore) InsertEvent(ev sqlite.FlightEvent) error {
	f.inserted = append(f.inserted, ev)
	return nil
}

func newReaperHarness(sample *influx.Sample, takeoff *sqlite.FlightEvent) (*Reaper, *fakeKV, *fakeLandingStore) {
	kv := newFakeKV()
	store := state.NewStore(kv, 6*time.Hour, time.Hour, logger.NewNop())
	positions := &fakePositionSource{last: sample}
	events := &fakeLandingStore{takeoff: takeoff}
	reaper := NewReaper(5*time.Minute, store, positions, events, nil, logger.NewNop())
	return reaper, kv, events
}

func TestReaperForcesLandingForSilentAircraft(t *testing.T) {
	now := time.Now().Unix()
	lastSeen := now - 3*3600
	sample := &influx.Sample{Time: time.Unix(lastSeen, 0).UTC(), AGL: 800, GS: 150, Lat: 49.4, Lon: 16.2}
	takeoff := &sqlite.FlightEvent{
		ID: 7, Ts: lastSeen - 3600, Address: "DD1234", AddressType: ogn.AddressTypeOgn,
		AircraftType: 1, Event: sqlite.EventTakeoff, Location: "LKKA",
	}
	reaper, kv, events := newReaperHarness(sample, takeoff)

	kv.data["ODD1234-status"] = state.StatusRecord{Status: state.StatusAirborne, Ts: takeoff.Ts}.Encode()

	reaper.Run(context.Background())

	if kv.data["ODD1234-status"] != "0;0" {
		t.Errorf("status = %q, want forced sentinel 0;0", kv.data["ODD1234-status"])
	}
	if len(events.inserted) != 1 {
		t.Fatalf("got %d landings, want 1", len(events.inserted))
	}
	landing := events.inserted[0]
	if landing.Event != sqlite.EventLanding {
		t.Errorf("event kind = %q, want L", landing.Event)
	}
	if landing.FlightTime != 3600 {
		t.Errorf("flight time = %d, want 3600", landing.FlightTime)
	}
	if landing.Location != "LKKA" {
		t.Errorf("location = %q, want LKKA carried over from takeoff", landing.Location)
	}
}

func TestReaperForcesLandingLowAndSlow(t *testing.T) {
	now := time.Now()
	sample := &influx.Sample{Time: now.Add(-time.Minute), AGL: 40, GS: 5, Lat: 49.4, Lon: 16.2}
	takeoff := &sqlite.FlightEvent{
		ID: 7, Ts: now.Unix() - 1800, Address: "DD1234", AddressType: ogn.AddressTypeOgn,
		Event: sqlite.EventTakeoff,
	}
	reaper, kv, events := newReaperHarness(sample, takeoff)

	kv.data["ODD1234-status"] = state.StatusRecord{Status: state.StatusAirborne, Ts: takeoff.Ts}.Encode()

	reaper.Run(context.Background())

	if kv.data["ODD1234-status"] != "0;0" {
		t.Errorf("status = %q, want forced sentinel 0;0", kv.data["ODD1234-status"])
	}
	if len(events.inserted) != 1 {
		t.Errorf("got %d landings, want 1", len(events.inserted))
	}
}

func TestReaperLeavesHealthyAircraftAlone(t *testing.T) {
	now := time.Now()
	sample := &influx.Sample{Time: now.Add(-time.Minute), AGL: 1200, GS: 95, Lat: 49.4, Lon: 16.2}
	reaper, kv, events := newReaperHarness(sample, nil)

	original := state.StatusRecord{Status: state.StatusAirborne, Ts: now.Unix() - 1800}.Encode()
	kv.data["ODD1234-status"] = original

	reaper.Run(context.Background())

	if kv.data["ODD1234-status"] != original {
		t.Errorf("status changed to %q for a healthy aircraft", kv.data["ODD1234-status"])
	}
	if len(events.inserted) != 0 {
		t.Errorf("got %d landings, want 0", len(events.inserted))
	}
}

func TestReaperSkipsOrphanLanding(t *testing.T) {
	now := time.Now().Unix()
	sample := &influx.Sample{Time: time.Unix(now-3*3600, 0).UTC(), AGL: 800, GS: 150}
	reaper, kv, events := newReaperHarness(sample, nil)

	kv.data["ODD1234-status"] = state.StatusRecord{Status: state.StatusAirborne, Ts: now - 4*3600}.Encode()

	reaper.Run(context.Background())

	// Status is still forced down, but no landing row is synthesized.
	if kv.data["ODD1234-status"] != "0;0" {
		t.Errorf("status = %q, want forced sentinel 0;0", kv.data["ODD1234-status"])
	}
	if len(events.inserted) != 0 {
		t.Errorf("got %d landings, want 0", len(events.inserted))
	}
}
