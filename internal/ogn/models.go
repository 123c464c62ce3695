package ogn

import "time"

// AddressType is the transport/identity category a beacon's address belongs to.
type AddressType int

const (
	AddressTypeUnknown AddressType = 0
	AddressTypeIcao    AddressType = 1
	AddressTypeFlarm   AddressType = 2
	AddressTypeOgn     AddressType = 3
	AddressTypeSafeSky AddressType = 4
)

// AddressTypes lists the categories that get their own ingest queue/worker.
var AddressTypes = []AddressType{AddressTypeOgn, AddressTypeIcao, AddressTypeFlarm, AddressTypeSafeSky}

// ShortString returns the one-letter prefix used in state-store keys and
// in the relational address_type column.
func (t AddressType) ShortString() string {
	switch t {
	case AddressTypeIcao:
		return "I"
	case AddressTypeFlarm:
		return "F"
	case AddressTypeOgn:
		return "O"
	case AddressTypeSafeSky:
		return "S"
	default:
		return "X"
	}
}

// LongString returns the three-letter prefix used in the time-series addr tag.
func (t AddressType) LongString() string {
	switch t {
	case AddressTypeIcao:
		return "ICA"
	case AddressTypeFlarm:
		return "FLR"
	case AddressTypeOgn:
		return "OGN"
	case AddressTypeSafeSky:
		return "SKY"
	default:
		return "XXX"
	}
}

// AddressTypeFromShort is the inverse of ShortString.
func AddressTypeFromShort(s string) AddressType {
	switch s {
	case "I":
		return AddressTypeIcao
	case "F":
		return AddressTypeFlarm
	case "O":
		return AddressTypeOgn
	case "S":
		return AddressTypeSafeSky
	default:
		return AddressTypeUnknown
	}
}

// AircraftType is the OGN aircraft category carried in the beacon id field.
type AircraftType int

const (
	AircraftTypeUndefined    AircraftType = 0
	AircraftTypeGlider       AircraftType = 1
	AircraftTypeTowPlane     AircraftType = 2
	AircraftTypeHelicopter   AircraftType = 3
	AircraftTypeParachute    AircraftType = 4
	AircraftTypeDropPlane    AircraftType = 5
	AircraftTypeHangGlider   AircraftType = 6
	AircraftTypeParaGlider   AircraftType = 7
	AircraftTypePistonPlane  AircraftType = 8
	AircraftTypeJetPlane     AircraftType = 9
	AircraftTypeUnknown      AircraftType = 10
	AircraftTypeBalloon      AircraftType = 11
	AircraftTypeAirship      AircraftType = 12
	AircraftTypeUav          AircraftType = 13
	AircraftTypeReserved     AircraftType = 14
	AircraftTypeStaticObject AircraftType = 15
)

// Value returns the numeric code persisted in the aircraft_type column.
func (t AircraftType) Value() int { return int(t) }

// Beacon is one telemetry sample for one aircraft at one instant.
// AGL is attached by the detector before the beacon is forwarded to the
// time-series sink; every other field is read-only after parsing.
type Beacon struct {
	Addr         string       // address without prefix, e.g. "DD1234"
	AddrType     AddressType
	AircraftType AircraftType
	Ts           int64   // UTC [s]
	Lat          float64 // [deg]
	Lon          float64 // [deg]
	Altitude     int     // [m]
	Speed        float64 // ground speed [km/h]
	TurnRate     float64 // [deg/s]
	ClimbRate    float64 // [m/s]
	AGL          int     // [m], -1 while unknown
}

// NewBeacon returns a beacon with AGL marked unknown.
func NewBeacon() *Beacon {
	return &Beacon{AGL: -1}
}

// SetAGL attaches the computed altitude above ground level.
func (b *Beacon) SetAGL(agl int) { b.AGL = agl }

// HasAGL reports whether an AGL value was attached.
func (b *Beacon) HasAGL() bool { return b.AGL >= 0 }

// Time returns the beacon timestamp as UTC time.
func (b *Beacon) Time() time.Time { return time.Unix(b.Ts, 0).UTC() }
