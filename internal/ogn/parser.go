package ogn

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNotPositionPacket is returned for APRS lines that carry no aircraft
// position (server comments, receiver status beacons, telemetry).
var ErrNotPositionPacket = errors.New("not an aircraft position packet")

// aprsPositionRe matches the OGN flavour of an APRS timestamped position:
//
//	FLRDD1234>APRS,qAS,LFMX:/165829h4415.41N/00600.03E'342/049/A=005524 !W10! id06DD1234 +198fpm +0.0rot ...
var aprsPositionRe = regexp.MustCompile(
	`^(?P<callsign>[A-Za-z0-9]+)>[^:]+:[/@](?P<time>\d{6})h` +
		`(?P<latdeg>\d{2})(?P<latmin>\d{2}\.\d{2})(?P<latns>[NS])(?P<symtab>.)` +
		`(?P<londeg>\d{3})(?P<lonmin>\d{2}\.\d{2})(?P<lonew>[EW])(?P<sym>.)` +
		`((?P<course>\d{3})/(?P<speed>\d{3}))?(/A=(?P<alt>\d{6}))?` +
		`(?P<comment>.*)$`)

var (
	precisionRe = regexp.MustCompile(`!W(\d)(\d)!`)
	idRe        = regexp.MustCompile(`id([0-9A-Fa-f]{2})([0-9A-Fa-f]{6,8})`)
	climbRe     = regexp.MustCompile(`([+-]\d+)fpm`)
	turnRe      = regexp.MustCompile(`([+-]\d+(\.\d+)?)rot`)
)

const (
	knotsToKmh = 1.852
	feetToM    = 0.3048
	fpmToMs    = 0.00508
)

// ParseBeacon parses one APRS-IS line into a Beacon. The reference time is
// used to resolve the HHMMSS-only APRS timestamp to a full instant.
func ParseBeacon(line string, now time.Time) (*Beacon, error) {
	if strings.HasPrefix(line, "#") {
		return nil, ErrNotPositionPacket
	}

	m := aprsPositionRe.FindStringSubmatch(line)
	if m == nil {
		return nil, ErrNotPositionPacket
	}
	group := func(name string) string {
		return m[aprsPositionRe.SubexpIndex(name)]
	}

	comment := group("comment")
	idm := idRe.FindStringSubmatch(comment)
	if idm == nil {
		// receiver status beacons carry a position but no aircraft id
		return nil, ErrNotPositionPacket
	}

	b := NewBeacon()
	b.Addr = strings.ToUpper(idm[2])

	idByte, err := strconv.ParseUint(idm[1], 16, 8)
	if err != nil {
		return nil, ErrNotPositionPacket
	}
	b.AddrType = addressTypeFromIdBits(int(idByte) & 0x03)
	b.AircraftType = AircraftType((idByte >> 2) & 0x0f)

	if b.AddrType == AddressTypeUnknown {
		b.AddrType = addressTypeFromCallsign(group("callsign"))
	}

	b.Ts = resolveTimestamp(group("time"), now)

	lat, lon, err := parseCoordinates(group("latdeg"), group("latmin"), group("latns"),
		group("londeg"), group("lonmin"), group("lonew"), comment)
	if err != nil {
		return nil, err
	}
	b.Lat = lat
	b.Lon = lon

	if v := group("alt"); v != "" {
		feet, _ := strconv.Atoi(v)
		b.Altitude = int(float64(feet) * feetToM)
	}
	if v := group("speed"); v != "" {
		knots, _ := strconv.Atoi(v)
		b.Speed = float64(knots) * knotsToKmh
	}
	if cm := climbRe.FindStringSubmatch(comment); cm != nil {
		fpm, _ := strconv.Atoi(cm[1])
		b.ClimbRate = float64(fpm) * fpmToMs
	}
	if tm := turnRe.FindStringSubmatch(comment); tm != nil {
		b.TurnRate, _ = strconv.ParseFloat(tm[1], 64)
	}

	return b, nil
}

// addressTypeFromIdBits maps the low two bits of the id byte.
func addressTypeFromIdBits(bits int) AddressType {
	switch bits {
	case 1:
		return AddressTypeIcao
	case 2:
		return AddressTypeFlarm
	case 3:
		return AddressTypeOgn
	default:
		return AddressTypeUnknown
	}
}

func addressTypeFromCallsign(callsign string) AddressType {
	switch {
	case strings.HasPrefix(callsign, "ICA"):
		return AddressTypeIcao
	case strings.HasPrefix(callsign, "FLR"):
		return AddressTypeFlarm
	case strings.HasPrefix(callsign, "OGN"):
		return AddressTypeOgn
	case strings.HasPrefix(callsign, "SKY"):
		return AddressTypeSafeSky
	default:
		return AddressTypeUnknown
	}
}

// parseCoordinates converts APRS ddmm.mm notation to decimal degrees,
// applying the optional !Wxy! precision-enhancement digits.
func parseCoordinates(latDeg, latMin, latNS, lonDeg, lonMin, lonEW, comment string) (float64, float64, error) {
	latExtra, lonExtra := 0.0, 0.0
	if pm := precisionRe.FindStringSubmatch(comment); pm != nil {
		la, _ := strconv.Atoi(pm[1])
		lo, _ := strconv.Atoi(pm[2])
		latExtra = float64(la) / 1000.0
		lonExtra = float64(lo) / 1000.0
	}

	ld, err := strconv.ParseFloat(latDeg, 64)
	if err != nil {
		return 0, 0, ErrNotPositionPacket
	}
	lm, err := strconv.ParseFloat(latMin, 64)
	if err != nil {
		return 0, 0, ErrNotPositionPacket
	}
	lat := ld + (lm+latExtra)/60.0
	if latNS == "S" {
		lat = -lat
	}

	lod, err := strconv.ParseFloat(lonDeg, 64)
	if err != nil {
		return 0, 0, ErrNotPositionPacket
	}
	lom, err := strconv.ParseFloat(lonMin, 64)
	if err != nil {
		return 0, 0, ErrNotPositionPacket
	}
	lon := lod + (lom+lonExtra)/60.0
	if lonEW == "W" {
		lon = -lon
	}

	return lat, lon, nil
}

// resolveTimestamp combines an APRS HHMMSS timestamp with the reference day.
// A timestamp slightly ahead of the reference is clock skew; far ahead means
// the beacon belongs to the previous UTC day.
func resolveTimestamp(hhmmss string, now time.Time) int64 {
	h, _ := strconv.Atoi(hhmmss[0:2])
	m, _ := strconv.Atoi(hhmmss[2:4])
	s, _ := strconv.Atoi(hhmmss[4:6])

	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, s, 0, time.UTC)
	if t.Sub(now) > time.Hour {
		t = t.AddDate(0, 0, -1)
	}
	return t.Unix()
}
