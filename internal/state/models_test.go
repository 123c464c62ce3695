package state

import (
	"testing"

	"github.com/ibisek/ogn-logbook/internal/ogn"
)

func TestStatusRecordEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		rec  StatusRecord
		want string
	}{
		{"on ground", StatusRecord{Status: StatusOnGround, Ts: 1686412709}, "0;1686412709"},
		{"airborne", StatusRecord{Status: StatusAirborne, Ts: 1686412709}, "1;1686412709"},
		{"forced landing sentinel", StatusRecord{Status: StatusOnGround, Ts: 0}, "0;0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
			if got := DecodeStatusRecord(tt.want); got != tt.rec {
				t.Errorf("DecodeStatusRecord(%q) = %+v, want %+v", tt.want, got, tt.rec)
			}
		})
	}
}

func TestDecodeStatusRecordMalformed(t *testing.T) {
	for _, val := range []string{"", "1", "x;123", "1;x", "0;1;2x", "garbage"} {
		rec := DecodeStatusRecord(val)
		if rec.Status != StatusUnknown {
			t.Errorf("DecodeStatusRecord(%q).Status = %v, want Unknown", val, rec.Status)
		}
	}
}

func TestKeys(t *testing.T) {
	if got := StatusKey(ogn.AddressTypeOgn, "DD1234"); got != "ODD1234-status" {
		t.Errorf("StatusKey() = %q, want ODD1234-status", got)
	}
	if got := SpeedKey(ogn.AddressTypeIcao, "4B1234"); got != "I4B1234-gs" {
		t.Errorf("SpeedKey() = %q, want I4B1234-gs", got)
	}
}
