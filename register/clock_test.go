package register

import (
	"errors"
	"testing"

	"github.com/ardnew/synccom/pkg"
)

func TestClockSequence(t *testing.T) {
	const fcr = 0xabcd0f0f
	seq := ClockSequence(DefaultClockBits, fcr)

	if len(seq) != ClockSequenceLen || ClockSequenceLen != 323 {
		t.Fatalf("len = %d, want 323", len(seq))
	}

	base := uint32(fcr) & 0xfffff0f0
	if seq[0] != base {
		t.Errorf("seq[0] = %#x, want %#x", seq[0], base)
	}
	if seq[len(seq)-1] != fcr {
		t.Errorf("last = %#x, want original FCR %#x", seq[len(seq)-1], uint32(fcr))
	}
	if seq[len(seq)-2] != base|0x8 {
		t.Errorf("strobe = %#x, want %#x", seq[len(seq)-2], base|0x8)
	}

	// Rebuild the word from the data bit sampled on each rising clock.
	var got ClockBits
	k := 1
	for i := ClockBitsSize - 1; i >= 0; i-- {
		for j := 7; j >= 0; j-- {
			hi, lo := seq[k], seq[k+1]
			k += 2
			if hi&0x2 == 0 || lo&0x2 != 0 {
				t.Fatalf("clock pulse malformed at byte %d bit %d: %#x %#x", i, j, hi, lo)
			}
			if hi&0x1 != 0 {
				got[i] |= 1 << j
			}
		}
	}

	want := DefaultClockBits
	want[15] |= 0x04
	if got != want {
		t.Errorf("shifted word = %v, want %v", got, want)
	}
}

func TestClockSequence_ForcesBit(t *testing.T) {
	var cb ClockBits
	seq := ClockSequence(cb, 0)

	// Byte 15 bit 2 is the 6th pulse of the 5th byte sent (bytes 19..15).
	k := 1 + (4*8+5)*2
	if seq[k]&0x1 == 0 {
		t.Error("byte 15 bit 2 not forced on")
	}
	if cb[15] != 0 {
		t.Error("ClockSequence modified its argument")
	}
}

func TestParseClockBits(t *testing.T) {
	cb, err := ParseClockBits(DefaultClockBits.String())
	if err != nil {
		t.Fatalf("ParseClockBits() error = %v", err)
	}
	if cb != DefaultClockBits {
		t.Errorf("ParseClockBits() = %v", cb)
	}

	for _, bad := range []string{"zz", "0f61"} {
		if _, err := ParseClockBits(bad); !errors.Is(err, pkg.ErrInvalidParameter) {
			t.Errorf("ParseClockBits(%q) error = %v", bad, err)
		}
	}
}
