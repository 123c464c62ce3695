package detector

import (
	"time"

	"github.com/ibisek/ogn-logbook/internal/ogn"
)

// Config carries the detection thresholds and record TTLs. All values are
// externally overridable; the zero value is not usable, start from
// DefaultConfig.
type Config struct {
	TakeoffSpeed     float64       // [km/h] OnGround -> Airborne above this smoothed speed
	LandingSpeedSlow float64       // [km/h] Airborne -> OnGround at or below, slow categories
	LandingSpeedFast float64       // [km/h] Airborne -> OnGround at or below, everything else
	MaxSpeed         float64       // [km/h] beacons faster than this never transition
	TakeoffAGLMin    int           // [m] take-off below this is a false positive
	LandingAGLMax    int           // [m] landing above this is a false positive
	MaxFutureSkew    time.Duration // beacons timestamped further ahead are dropped
	MinFlightTime    time.Duration // shorter "flights" are noise
	MaxFlightTime    time.Duration // longer "flights" are stale residue
	DedupTTL         time.Duration
	InitialSpeedTTL  time.Duration // TTL on the lazily initialized zero speed
	SmoothedSpeedTTL time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		TakeoffSpeed:     80,
		LandingSpeedSlow: 20,
		LandingSpeedFast: 50,
		MaxSpeed:         400,
		TakeoffAGLMin:    50,
		LandingAGLMax:    100,
		MaxFutureSkew:    120 * time.Second,
		MinFlightTime:    120 * time.Second,
		MaxFlightTime:    12 * time.Hour,
		DedupTTL:         time.Second,
		InitialSpeedTTL:  120 * time.Second,
		SmoothedSpeedTTL: time.Hour,
	}
}

// unsupportedCategories are the aircraft categories the detector ignores
// entirely: either not aircraft at all or traffic whose flight profile the
// ground/airborne rules cannot classify.
var unsupportedCategories = map[ogn.AircraftType]bool{
	ogn.AircraftTypeUndefined:    true,
	ogn.AircraftTypeUnknown:      true,
	ogn.AircraftTypeBalloon:      true,
	ogn.AircraftTypeAirship:      true,
	ogn.AircraftTypeUav:          true,
	ogn.AircraftTypeReserved:     true,
	ogn.AircraftTypeStaticObject: true,
}

// slowCategories land well below the fixed-wing powered landing speed and
// get the lower landing threshold.
var slowCategories = map[ogn.AircraftType]bool{
	ogn.AircraftTypeGlider:     true,
	ogn.AircraftTypeHelicopter: true,
	ogn.AircraftTypeParachute:  true,
	ogn.AircraftTypeHangGlider: true,
	ogn.AircraftTypeParaGlider: true,
	ogn.AircraftTypeBalloon:    true,
	ogn.AircraftTypeAirship:    true,
	ogn.AircraftTypeUav:        true,
}

// landingSpeed returns the landing threshold for an aircraft category.
func (c Config) landingSpeed(t ogn.AircraftType) float64 {
	if slowCategories[t] {
		return c.LandingSpeedSlow
	}
	return c.LandingSpeedFast
}
