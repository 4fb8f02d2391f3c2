package register

import (
	"encoding/hex"
	"fmt"

	"github.com/ardnew/synccom/pkg"
)

// ClockBitsSize is the length of a clock programming word.
const ClockBitsSize = 20

// ClockSequenceLen is the number of FCR writes that program a clock word.
const ClockSequenceLen = 1 + ClockBitsSize*8*2 + 2

// ClockBits is the opaque programming word of the card's clock generator.
type ClockBits [ClockBitsSize]byte

// DefaultClockBits programs an 18.432 MHz clock.
var DefaultClockBits = ClockBits{
	0x0f, 0x61, 0xe5, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x18, 0x16, 0x40, 0x01, 0x04, 0x00, 0xff, 0xff, 0xff,
}

// FCR bits that drive the clock generator's serial interface.
const (
	fcrStrobe   uint32 = 0x00000008
	fcrData     uint32 = 0x00000001
	fcrClock    uint32 = 0x00000002
	fcrPreserve uint32 = 0xfffff0f0
)

// ParseClockBits decodes a 40-character hex string.
func ParseClockBits(s string) (ClockBits, error) {
	var cb ClockBits
	p, err := hex.DecodeString(s)
	if err != nil {
		return cb, fmt.Errorf("%w: %v", pkg.ErrInvalidParameter, err)
	}
	if len(p) != ClockBitsSize {
		return cb, fmt.Errorf("%w: clock bits are %d bytes, want %d",
			pkg.ErrInvalidParameter, len(p), ClockBitsSize)
	}
	copy(cb[:], p)
	return cb, nil
}

// String returns the word as hex.
func (cb ClockBits) String() string {
	return hex.EncodeToString(cb[:])
}

// ClockSequence returns the FCR values that shift cb into the clock
// generator, starting from and finally restoring fcr. Bits are sent from
// the last byte to the first, most significant bit first, each latched by
// a clock pulse; a strobe ends the word.
func ClockSequence(cb ClockBits, fcr uint32) []uint32 {
	cb[15] |= 0x04

	base := fcr & fcrPreserve
	seq := make([]uint32, 0, ClockSequenceLen)
	seq = append(seq, base)

	for i := ClockBitsSize - 1; i >= 0; i-- {
		for j := 7; j >= 0; j-- {
			v := base
			if (cb[i]>>j)&1 != 0 {
				v |= fcrData
			}
			seq = append(seq, v|fcrClock, v&^fcrClock)
		}
	}

	seq = append(seq, (base|fcrStrobe)&^fcrClock, fcr)
	return seq
}
