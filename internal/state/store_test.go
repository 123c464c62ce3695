package state

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/internal/ogn"
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
		return "", ErrNotFound
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

func newTestStore() (*Store, *fakeKV) {
	kv := newFakeKV()
	return NewStore(kv, 6*time.Hour, time.Hour, logger.NewNop()), kv
}

func TestStatusMissingReadsUnknown(t *testing.T) {
	store, _ := newTestStore()
	rec := store.Status(context.Background(), ogn.AddressTypeOgn, "DD1234")
	if rec.Status != StatusUnknown {
		t.Errorf("Status() = %v, want Unknown", rec.Status)
	}
}

func TestSetAndGetStatus(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	want := StatusRecord{Status: StatusAirborne, Ts: 1686412709}
	if err := store.SetStatus(ctx, ogn.AddressTypeFlarm, "DD1234", want); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got := store.Status(ctx, ogn.AddressTypeFlarm, "DD1234"); got != want {
		t.Errorf("Status() = %+v, want %+v", got, want)
	}
}

func TestSpeedRoundTrip(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	if _, ok := store.Speed(ctx, ogn.AddressTypeOgn, "DD1234"); ok {
		t.Error("Speed() reported a value before any write")
	}

	if err := store.SetSpeed(ctx, ogn.AddressTypeOgn, "DD1234", 87.6, 0); err != nil {
		t.Fatalf("SetSpeed() error = %v", err)
	}
	if kv.data["ODD1234-gs"] != "88" {
		t.Errorf("stored speed = %q, want rounded 88", kv.data["ODD1234-gs"])
	}
	gs, ok := store.Speed(ctx, ogn.AddressTypeOgn, "DD1234")
	if !ok || gs != 88 {
		t.Errorf("Speed() = (%f, %t), want (88, true)", gs, ok)
	}
}

func TestClearRemovesBothKeys(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	store.SetStatus(ctx, ogn.AddressTypeOgn, "DD1234", StatusRecord{Status: StatusAirborne, Ts: 1})
	store.SetSpeed(ctx, ogn.AddressTypeOgn, "DD1234", 90, 0)

	if err := store.Clear(ctx, ogn.AddressTypeOgn, "DD1234"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(kv.data) != 0 {
		t.Errorf("keys remaining after Clear: %v", kv.data)
	}
}

func TestAirborneAircraft(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	store.SetStatus(ctx, ogn.AddressTypeOgn, "AAAAAA", StatusRecord{Status: StatusAirborne, Ts: 1})
	store.SetStatus(ctx, ogn.AddressTypeFlarm, "BBBBBB", StatusRecord{Status: StatusOnGround, Ts: 2})
	store.SetStatus(ctx, ogn.AddressTypeIcao, "CCCCCC", StatusRecord{Status: StatusAirborne, Ts: 3})

	airborne, err := store.AirborneAircraft(ctx)
	if err != nil {
		t.Fatalf("AirborneAircraft() error = %v", err)
	}
	if len(airborne) != 2 {
		t.Fatalf("AirborneAircraft() returned %d aircraft, want 2", len(airborne))
	}
	found := make(map[Aircraft]bool)
	for _, a := range airborne {
		found[a] = true
	}
	if !found[(Aircraft{AddrType: ogn.AddressTypeOgn, Addr: "AAAAAA"})] {
		t.Error("missing airborne OGN AAAAAA")
	}
	if !found[(Aircraft{AddrType: ogn.AddressTypeIcao, Addr: "CCCCCC"})] {
		t.Error("missing airborne ICAO CCCCCC")
	}
}
