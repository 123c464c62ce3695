// Package detector holds the per-aircraft ground/airborne state machine.
// One Detector instance runs per ingest worker; instances share nothing but
// the external stores, so transitions for a given aircraft are evaluated by
// exactly one goroutine in arrival order.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/ibisek/ogn-logbook/internal/cache"
	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/state"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// PositionSink receives every processed beacon for position history.
type PositionSink interface {
	Store(b *ogn.Beacon)
}

// StatementSink receives the SQL statements generated on transitions.
type StatementSink interface {
	Enqueue(stmt sqlite.Statement)
}

// EventNotifier is told about every accepted flight event. Optional.
type EventNotifier interface {
	NotifyEvent(ev sqlite.FlightEvent)
}

// Detector consumes one beacon at a time and emits take-off and landing
// events when the smoothed ground speed crosses the category thresholds.
type Detector struct {
	cfg        Config
	elevation  geo.Elevation
	airfields  *geo.AirfieldIndex
	status     *state.Store
	positions  PositionSink
	statements StatementSink
	notifier   EventNotifier
	dedup      *cache.ExpiringMap[string, struct{}]
	logger     *logger.Logger
	now        func() time.Time
}

// New creates a detector. elevation and notifier may be nil; airfield
// resolution degrades to "unknown" when airfields is nil.
func New(
	cfg Config,
	elevation geo.Elevation,
	airfields *geo.AirfieldIndex,
	status *state.Store,
	positions PositionSink,
	statements StatementSink,
	notifier EventNotifier,
	log *logger.Logger,
) *Detector {
	return &Detector{
		cfg:        cfg,
		elevation:  elevation,
		airfields:  airfields,
		status:     status,
		positions:  positions,
		statements: statements,
		notifier:   notifier,
		dedup:      cache.New[string, struct{}](cfg.DedupTTL),
		logger:     log.Named("detector"),
		now:        time.Now,
	}
}

// Process runs one beacon through the state machine.
func (d *Detector) Process(ctx context.Context, b *ogn.Beacon) {
	defer d.dedup.Tick()

	if unsupportedCategories[b.AircraftType] {
		return
	}
	if b.Ts > d.now().Add(d.cfg.MaxFutureSkew).Unix() {
		d.logger.Debug("Dropping beacon from the future",
			logger.String("addr", b.Addr),
			logger.Int64("ts", b.Ts))
		return
	}

	d.attachAGL(b)

	// Position history keeps everything, including repeats and beacons the
	// transition rules reject below.
	d.positions.Store(b)

	key := dedupKey(b)
	if d.dedup.Contains(key) {
		return
	}
	d.dedup.Insert(key, struct{}{})

	if b.Speed > d.cfg.MaxSpeed {
		return
	}

	rec := d.status.Status(ctx, b.AddrType, b.Addr)
	if rec.Status == state.StatusUnknown {
		rec = state.StatusRecord{Status: state.StatusOnGround, Ts: b.Ts}
		if err := d.status.SetStatus(ctx, b.AddrType, b.Addr, rec); err != nil {
			d.logger.Error("Failed to initialize status", logger.String("addr", b.Addr), logger.Error(err))
			return
		}
		if err := d.status.SetSpeed(ctx, b.AddrType, b.Addr, 0, d.cfg.InitialSpeedTTL); err != nil {
			d.logger.Error("Failed to initialize ground speed", logger.String("addr", b.Addr), logger.Error(err))
		}
	}

	speed := d.smoothSpeed(ctx, b)

	next := rec.Status
	switch rec.Status {
	case state.StatusOnGround:
		if speed > d.cfg.TakeoffSpeed {
			next = state.StatusAirborne
		}
	case state.StatusAirborne:
		if speed <= d.cfg.landingSpeed(b.AircraftType) {
			next = state.StatusOnGround
		}
	}
	if next == rec.Status {
		return
	}

	if next == state.StatusOnGround {
		d.handleLanding(ctx, b, rec)
	} else {
		d.handleTakeoff(ctx, b)
	}
}

// attachAGL computes altitude above ground level for the beacon. Lookup
// failures leave AGL unknown; negative values clamp to 0.
func (d *Detector) attachAGL(b *ogn.Beacon) {
	if d.elevation == nil {
		return
	}
	elev, ok := d.elevation.ElevationAt(b.Lat, b.Lon)
	if !ok {
		return
	}
	agl := b.Altitude - elev
	if agl < 0 {
		agl = 0
	}
	b.SetAGL(agl)
}

// smoothSpeed folds the beacon's ground speed into the stored estimate and
// persists the result. Returns the smoothed value.
func (d *Detector) smoothSpeed(ctx context.Context, b *ogn.Beacon) float64 {
	speed := b.Speed
	if prev, ok := d.status.Speed(ctx, b.AddrType, b.Addr); ok && prev > 0 {
		speed = 0.7*b.Speed + 0.3*prev
	}
	if speed > 0 {
		if err := d.status.SetSpeed(ctx, b.AddrType, b.Addr, speed, d.cfg.SmoothedSpeedTTL); err != nil {
			d.logger.Error("Failed to store ground speed", logger.String("addr", b.Addr), logger.Error(err))
		}
	}
	return speed
}

func (d *Detector) handleTakeoff(ctx context.Context, b *ogn.Beacon) {
	if b.HasAGL() && b.AGL < d.cfg.TakeoffAGLMin {
		return
	}

	rec := state.StatusRecord{Status: state.StatusAirborne, Ts: b.Ts}
	if err := d.status.SetStatus(ctx, b.AddrType, b.Addr, rec); err != nil {
		d.logger.Error("Failed to store status", logger.String("addr", b.Addr), logger.Error(err))
		return
	}

	d.emitEvent(b, sqlite.EventTakeoff, 0)
}

func (d *Detector) handleLanding(ctx context.Context, b *ogn.Beacon, prev state.StatusRecord) {
	flightTime := b.Ts - prev.Ts
	if flightTime < int64(d.cfg.MinFlightTime.Seconds()) {
		return
	}
	if flightTime > int64(d.cfg.MaxFlightTime.Seconds()) {
		// Stale residue from an aircraft that went silent long ago.
		if err := d.status.Clear(ctx, b.AddrType, b.Addr); err != nil {
			d.logger.Error("Failed to clear stale state", logger.String("addr", b.Addr), logger.Error(err))
		}
		return
	}
	if b.HasAGL() && b.AGL > d.cfg.LandingAGLMax {
		return
	}

	rec := state.StatusRecord{Status: state.StatusOnGround, Ts: b.Ts}
	if err := d.status.SetStatus(ctx, b.AddrType, b.Addr, rec); err != nil {
		d.logger.Error("Failed to store status", logger.String("addr", b.Addr), logger.Error(err))
		return
	}

	d.emitEvent(b, sqlite.EventLanding, flightTime)
}

func (d *Detector) emitEvent(b *ogn.Beacon, kind sqlite.EventKind, flightTime int64) {
	location := ""
	if d.airfields != nil {
		if code, ok := d.airfields.Nearest(b.Lat, b.Lon); ok {
			location = code
		}
	}

	ev := sqlite.FlightEvent{
		Ts:           b.Ts,
		Address:      b.Addr,
		AddressType:  b.AddrType,
		AircraftType: b.AircraftType.Value(),
		Event:        kind,
		Lat:          b.Lat,
		Lon:          b.Lon,
		Location:     location,
		FlightTime:   flightTime,
	}

	d.statements.Enqueue(sqlite.InsertEventStmt(ev))
	if d.notifier != nil {
		d.notifier.NotifyEvent(ev)
	}

	d.logger.Info("Flight event",
		logger.String("event", string(kind)),
		logger.String("addr", b.AddrType.ShortString()+b.Addr),
		logger.String("location", location),
		logger.Int64("flight_time", flightTime))
}

// dedupKey identifies a beacon by its rounded position and kinematics.
func dedupKey(b *ogn.Beacon) string {
	return fmt.Sprintf("%s%s-%.4f%.4f%d%.1f%.1f",
		b.AddrType.ShortString(), b.Addr, b.Lat, b.Lon, b.Altitude, b.Speed, b.ClimbRate)
}
