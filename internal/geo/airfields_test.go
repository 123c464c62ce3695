package geo

import (
	"fmt"
	"testing"
)

func testIndex() *AirfieldIndex {
	return NewAirfieldIndex([]AirfieldRecord{
		NewAirfieldRecord("LKKA", 49.3697, 16.1144),
		NewAirfieldRecord("LKBR", 48.9950, 16.6833),
		NewAirfieldRecord("LKPR", 50.1008, 14.2600),
		NewAirfieldRecord("SAWH", -54.8431, -68.2956), // opposite quadrant
	})
}

func TestNearestCoincidentPoint(t *testing.T) {
	idx := testIndex()
	code, ok := idx.Nearest(49.3697, 16.1144)
	if !ok {
		t.Fatal("Nearest() found nothing")
	}
	if code != "LKKA" {
		t.Errorf("Nearest() = %q, want LKKA", code)
	}
}

func TestNearestPicksClosest(t *testing.T) {
	idx := testIndex()
	// A point a few km from LKBR, far from the others.
	code, ok := idx.Nearest(49.01, 16.70)
	if !ok {
		t.Fatal("Nearest() found nothing")
	}
	if code != "LKBR" {
		t.Errorf("Nearest() = %q, want LKBR", code)
	}
}

func TestNearestQuadrantSeparation(t *testing.T) {
	idx := testIndex()
	code, ok := idx.Nearest(-54.0, -68.0)
	if !ok {
		t.Fatal("Nearest() found nothing")
	}
	if code != "SAWH" {
		t.Errorf("Nearest() = %q, want SAWH", code)
	}
}

func TestNearestEmptyQuadrant(t *testing.T) {
	idx := testIndex()
	// No airfields with lat >= 0, lon < 0 in the fixture.
	if code, ok := idx.Nearest(45.0, -70.0); ok {
		t.Errorf("Nearest() = %q, want no result for empty quadrant", code)
	}
}

func TestNearestLargeBucket(t *testing.T) {
	// More records than the candidate window to exercise the binary search.
	records := make([]AirfieldRecord, 0, 500)
	for i := 0; i < 500; i++ {
		records = append(records, NewAirfieldRecord(
			fmt.Sprintf("AF%03d", i), 40.0+float64(i)*0.02, 15.0))
	}
	idx := NewAirfieldIndex(records)

	code, ok := idx.Nearest(40.0+250*0.02, 15.0)
	if !ok {
		t.Fatal("Nearest() found nothing")
	}
	if code != "AF250" {
		t.Errorf("Nearest() = %q, want AF250", code)
	}
}
