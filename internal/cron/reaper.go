package cron

import (
	"context"
	"time"

	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/state"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type landingStore interface {
	FindMostRecentTakeoff(addrType ogn.AddressType, addr string) (*sqlite.FlightEvent, error)
	InsertEvent(ev sqlite.FlightEvent) error
}

// Reaper closes out aircraft stuck in the Airborne state: receivers lose
// coverage near the ground, so a landing can slip past the detector
// entirely. The reaper infers it from the last known position instead.
type Reaper struct {
	interval  time.Duration
	status    *state.Store
	positions PositionSource
	events    landingStore
	airfields *geo.AirfieldIndex
	logger    *logger.Logger
	now       func() time.Time
}

const (
	// A parked aircraft still in coverage: low over its airfield and slow.
	reaperAGLMax = 100
	reaperGSMax  = 20.0

	// An aircraft silent this long is assumed down regardless of its last
	// reported kinematics.
	reaperMaxAge = 2 * time.Hour
)

// NewReaper creates the stale-state reaper job.
func NewReaper(interval time.Duration, status *state.Store, positions PositionSource, events landingStore, airfields *geo.AirfieldIndex, log *logger.Logger) *Reaper {
	return &Reaper{
		interval:  interval,
		status:    status,
		positions: positions,
		events:    events,
		airfields: airfields,
		logger:    log.Named("reaper"),
		now:       time.Now,
	}
}

func (r *Reaper) Name() string            { return "reaper" }
func (r *Reaper) Interval() time.Duration { return r.interval }

// Run examines every aircraft currently marked Airborne.
func (r *Reaper) Run(ctx context.Context) {
	airborne, err := r.status.AirborneAircraft(ctx)
	if err != nil {
		r.logger.Error("Failed to list airborne aircraft", logger.Error(err))
		return
	}

	for _, a := range airborne {
		if ctx.Err() != nil {
			return
		}
		r.inspect(ctx, a)
	}
}

func (r *Reaper) inspect(ctx context.Context, a state.Aircraft) {
	addr := a.AddrType.LongString() + a.Addr
	sample, err := r.positions.LastPosition(addr)
	if err != nil {
		r.logger.Error("Failed to query last position",
			logger.String("addr", addr),
			logger.Error(err))
		return
	}
	if sample == nil {
		return
	}

	lowAndSlow := sample.AGL > 0 && sample.AGL < reaperAGLMax && sample.GS < reaperGSMax
	silent := r.now().Sub(sample.Time) > reaperMaxAge
	if !lowAndSlow && !silent {
		return
	}

	r.logger.Info("Forcing landed state",
		logger.String("addr", addr),
		logger.Int("agl", sample.AGL),
		logger.Float64("gs", sample.GS),
		logger.Bool("silent", silent))

	// Ts 0 marks the landing as inferred, not observed.
	forced := state.StatusRecord{Status: state.StatusOnGround, Ts: 0}
	if err := r.status.SetStatus(ctx, a.AddrType, a.Addr, forced); err != nil {
		r.logger.Error("Failed to force status", logger.String("addr", addr), logger.Error(err))
		return
	}

	takeoff, err := r.events.FindMostRecentTakeoff(a.AddrType, a.Addr)
	if err != nil {
		r.logger.Error("Failed to look up takeoff", logger.String("addr", addr), logger.Error(err))
		return
	}
	if takeoff == nil {
		// Never saw this aircraft take off; nothing to pair a landing with.
		return
	}

	flightTime := sample.Time.Unix() - takeoff.Ts
	if flightTime < 0 {
		flightTime = 0
	}

	location := takeoff.Location
	if location == "" && r.airfields != nil {
		if code, ok := r.airfields.Nearest(sample.Lat, sample.Lon); ok {
			location = code
		}
	}

	landing := sqlite.FlightEvent{
		Ts:           sample.Time.Unix(),
		Address:      a.Addr,
		AddressType:  a.AddrType,
		AircraftType: takeoff.AircraftType,
		Event:        sqlite.EventLanding,
		Lat:          sample.Lat,
		Lon:          sample.Lon,
		Location:     location,
		FlightTime:   flightTime,
	}
	if err := r.events.InsertEvent(landing); err != nil {
		r.logger.Error("Failed to insert landing", logger.String("addr", addr), logger.Error(err))
	}
}
