package cron

import (
	"context"
	"math"
	"time"

	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type flightStore interface {
	ListUncomputedFlights(since int64, limit int) ([]sqlite.FlightEntry, error)
	SetFlownDistance(id int64, km int64) error
}

// distanceBatchLimit caps how many flights one pass computes.
const distanceBatchLimit = 100

// DistanceCalculator integrates the recorded track of completed flights
// into a flown distance. A flight with no track data persists 0, which
// keeps it out of the next pass; null stays reserved for "not computed".
type DistanceCalculator struct {
	interval  time.Duration
	flights   flightStore
	positions PositionSource
	logger    *logger.Logger
	now       func() time.Time
}

// NewDistanceCalculator creates the flown-distance job.
func NewDistanceCalculator(interval time.Duration, flights flightStore, positions PositionSource, log *logger.Logger) *DistanceCalculator {
	return &DistanceCalculator{
		interval:  interval,
		flights:   flights,
		positions: positions,
		logger:    log.Named("distance"),
		now:       time.Now,
	}
}

func (d *DistanceCalculator) Name() string            { return "distance" }
func (d *DistanceCalculator) Interval() time.Duration { return d.interval }

// Run computes the distance for a batch of flights landed within the last
// two intervals.
func (d *DistanceCalculator) Run(ctx context.Context) {
	since := d.now().Add(-2 * d.interval).Unix()
	flights, err := d.flights.ListUncomputedFlights(since, distanceBatchLimit)
	if err != nil {
		d.logger.Error("Failed to list flights", logger.Error(err))
		return
	}

	for _, flight := range flights {
		if ctx.Err() != nil {
			return
		}
		if flight.TakeoffTs == nil || flight.LandingTs == nil {
			continue
		}

		addr := flight.AddressType.LongString() + flight.Address
		track, err := d.positions.Track(addr, *flight.TakeoffTs, *flight.LandingTs)
		if err != nil {
			d.logger.Error("Failed to query track",
				logger.String("addr", addr),
				logger.Error(err))
			continue
		}

		km := trackDistanceKm(track)
		if err := d.flights.SetFlownDistance(flight.ID, km); err != nil {
			d.logger.Error("Failed to store distance",
				logger.Int64("id", flight.ID),
				logger.Error(err))
			continue
		}

		d.logger.Debug("Computed flown distance",
			logger.String("addr", addr),
			logger.Int64("km", km),
			logger.Int("samples", len(track)))
	}
}

// trackDistanceKm sums consecutive great-circle segments of the track.
func trackDistanceKm(track []influx.Sample) int64 {
	total := 0.0
	for i := 1; i < len(track); i++ {
		total += geo.DistanceKm(
			track[i-1].Lat*math.Pi/180, track[i-1].Lon*math.Pi/180,
			track[i].Lat*math.Pi/180, track[i].Lon*math.Pi/180)
	}
	return int64(math.Round(total))
}
