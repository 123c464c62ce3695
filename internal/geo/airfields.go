package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// AirfieldRecord is one gazetteer entry. Coordinates are kept in radians
// for the distance math.
type AirfieldRecord struct {
	Code string
	Lat  float64 // [rad]
	Lon  float64 // [rad]
}

// NewAirfieldRecord creates a record from coordinates in degrees.
func NewAirfieldRecord(code string, latDeg, lonDeg float64) AirfieldRecord {
	return AirfieldRecord{
		Code: code,
		Lat:  latDeg * math.Pi / 180,
		Lon:  lonDeg * math.Pi / 180,
	}
}

// AirfieldIndex answers nearest-airfield queries over a static gazetteer.
// Records are partitioned into four quadrants by sign of latitude and
// longitude, each sorted by latitude; immutable after construction.
type AirfieldIndex struct {
	quadrants [2][2][]AirfieldRecord // [latSign][lonSign], 0 = >= 0, 1 = < 0
}

type airfieldJSON struct {
	Code string  `json:"code"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// LoadAirfields reads the gazetteer JSON file and builds the index.
func LoadAirfields(path string, log *logger.Logger) (*AirfieldIndex, error) {
	log.Info("Reading airfields", logger.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read airfields file: %w", err)
	}

	var raw []airfieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse airfields file: %w", err)
	}

	records := make([]AirfieldRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, NewAirfieldRecord(r.Code, r.Lat, r.Lon))
	}

	log.Info("Airfields loaded", logger.Int("count", len(records)))
	return NewAirfieldIndex(records), nil
}

// NewAirfieldIndex builds the quadrant index from the given records.
func NewAirfieldIndex(records []AirfieldRecord) *AirfieldIndex {
	sort.Slice(records, func(i, j int) bool { return records[i].Lat < records[j].Lat })

	idx := &AirfieldIndex{}
	for _, rec := range records {
		li, lo := signIndex(rec.Lat), signIndex(rec.Lon)
		idx.quadrants[li][lo] = append(idx.quadrants[li][lo], rec)
	}
	return idx
}

func signIndex(v float64) int {
	if v >= 0 {
		return 0
	}
	return 1
}

// candidateWindow is the latitude-sorted window size the binary search
// narrows to before the linear distance scan.
const candidateWindow = 100

// Nearest returns the code of the closest airfield to the given point
// (degrees), or false when the matching quadrant holds no airfields.
//
// The search is two-phase: a bounded binary search narrows the quadrant's
// latitude-sorted bucket to at most candidateWindow records, then a linear
// scan keeps the minimum great-circle distance. The true nearest could in
// theory sit just outside the latitude window; airfields cluster tightly
// enough that the window is generous relative to their spacing.
func (a *AirfieldIndex) Nearest(latDeg, lonDeg float64) (string, bool) {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180

	bucket := a.quadrants[signIndex(lat)][signIndex(lon)]
	if len(bucket) == 0 {
		return "", false
	}

	startI, endI := 0, len(bucket)-1
	for n := 0; endI-startI > candidateWindow && n < 100; n++ {
		i := startI + (endI-startI)/2
		if lat < bucket[i].Lat {
			endI = i
		} else {
			startI = i
		}
	}

	minDist := math.MaxFloat64
	code := ""
	for _, rec := range bucket[startI : endI+1] {
		dist := DistanceKm(lat, lon, rec.Lat, rec.Lon)
		if dist < minDist {
			minDist = dist
			code = rec.Code
		}
	}
	return code, code != ""
}
