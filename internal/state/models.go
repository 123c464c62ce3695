// Package state holds the live per-aircraft ground/airborne status and the
// smoothed ground-speed estimate, both kept in the key-value store with a
// TTL. An expired or missing record reads back as Unknown.
package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ibisek/ogn-logbook/internal/ogn"
)

// AircraftStatus is the detector's ground/airborne state.
type AircraftStatus int

const (
	StatusUnknown  AircraftStatus = -1
	StatusOnGround AircraftStatus = 0
	StatusAirborne AircraftStatus = 1
)

func statusFromCode(code int) AircraftStatus {
	switch code {
	case 0:
		return StatusOnGround
	case 1:
		return StatusAirborne
	default:
		return StatusUnknown
	}
}

// StatusRecord pairs a status with the timestamp it was entered at.
type StatusRecord struct {
	Status AircraftStatus
	Ts     int64 // UTC [s]; 0 marks a landing forced by the reaper
}

// Encode serializes the record into the store value format "{status};{ts}".
func (r StatusRecord) Encode() string {
	return fmt.Sprintf("%d;%d", int(r.Status), r.Ts)
}

// DecodeStatusRecord parses the "{status};{ts}" value format. Anything
// malformed decodes as Unknown.
func DecodeStatusRecord(s string) StatusRecord {
	parts := strings.SplitN(s, ";", 2)
	if len(parts) != 2 {
		return StatusRecord{Status: StatusUnknown}
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return StatusRecord{Status: StatusUnknown}
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return StatusRecord{Status: StatusUnknown}
	}
	return StatusRecord{Status: statusFromCode(code), Ts: ts}
}

// StatusKey returns the store key for an aircraft's status record.
func StatusKey(addrType ogn.AddressType, addr string) string {
	return addrType.ShortString() + addr + "-status"
}

// SpeedKey returns the store key for an aircraft's smoothed ground speed.
func SpeedKey(addrType ogn.AddressType, addr string) string {
	return addrType.ShortString() + addr + "-gs"
}
