package cron

import (
	"context"
	"time"

	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// PositionSource answers the range queries the jobs run against the
// position series. Implemented by influx.Client; faked in tests.
type PositionSource interface {
	LastPosition(addr string) (*influx.Sample, error)
	Window(addr string, start, end int64) ([]influx.Sample, error)
	Track(addr string, start, end int64) ([]influx.Sample, error)
}

type takeoffStore interface {
	ListRecentTakeoffs(since int64) ([]sqlite.FlightEvent, error)
	UpdateTakeoff(id int64, ts int64, lat, lon float64, icao string) error
}

// TakeoffRefiner corrects the recorded take-off instant of fresh take-off
// events. The real-time detector fires only once the smoothed speed clears
// the threshold, which is seconds after the wheels actually left; the true
// instant is the ground-speed minimum just before the acceleration run.
type TakeoffRefiner struct {
	interval  time.Duration
	events    takeoffStore
	positions PositionSource
	airfields *geo.AirfieldIndex
	logger    *logger.Logger
	now       func() time.Time
}

// refinerEarlyExitSpeed stops the minimum scan: anything at or below taxi
// speed is close enough to the true minimum.
const refinerEarlyExitSpeed = 40.0

// refinerWindow is how far back before the recorded take-off the track is
// examined.
const refinerWindow = 61

// NewTakeoffRefiner creates the refiner job.
func NewTakeoffRefiner(interval time.Duration, events takeoffStore, positions PositionSource, airfields *geo.AirfieldIndex, log *logger.Logger) *TakeoffRefiner {
	return &TakeoffRefiner{
		interval:  interval,
		events:    events,
		positions: positions,
		airfields: airfields,
		logger:    log.Named("takeoff-refiner"),
		now:       time.Now,
	}
}

func (r *TakeoffRefiner) Name() string            { return "takeoff-refiner" }
func (r *TakeoffRefiner) Interval() time.Duration { return r.interval }

// Run refines every take-off recorded within the last two intervals.
func (r *TakeoffRefiner) Run(ctx context.Context) {
	since := r.now().Add(-2 * r.interval).Unix()
	takeoffs, err := r.events.ListRecentTakeoffs(since)
	if err != nil {
		r.logger.Error("Failed to list recent takeoffs", logger.Error(err))
		return
	}

	for _, ev := range takeoffs {
		if ctx.Err() != nil {
			return
		}
		r.refine(ev)
	}
}

func (r *TakeoffRefiner) refine(ev sqlite.FlightEvent) {
	addr := ev.AddressType.LongString() + ev.Address
	samples, err := r.positions.Window(addr, ev.Ts-refinerWindow, ev.Ts-2)
	if err != nil {
		r.logger.Error("Failed to query takeoff window",
			logger.String("addr", addr),
			logger.Error(err))
		return
	}
	if len(samples) == 0 {
		return
	}

	// Samples arrive newest first. The <= comparison keeps the earliest
	// sample among equal minima, which is the one closest to standstill.
	var best *influx.Sample
	minSpeed := 1e9
	for i := range samples {
		if samples[i].GS <= minSpeed {
			minSpeed = samples[i].GS
			best = &samples[i]
		}
		if minSpeed <= refinerEarlyExitSpeed {
			break
		}
	}
	if best == nil {
		return
	}

	icao := ev.Location
	if icao == "" && r.airfields != nil {
		if code, ok := r.airfields.Nearest(best.Lat, best.Lon); ok {
			icao = code
		}
	}

	if err := r.events.UpdateTakeoff(ev.ID, best.Time.Unix(), best.Lat, best.Lon, icao); err != nil {
		r.logger.Error("Failed to update takeoff",
			logger.Int64("id", ev.ID),
			logger.Error(err))
		return
	}

	r.logger.Debug("Refined takeoff",
		logger.Int64("id", ev.ID),
		logger.String("addr", addr),
		logger.Int64("shift", ev.Ts-best.Time.Unix()))
}
