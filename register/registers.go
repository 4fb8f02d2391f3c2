package register

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ardnew/synccom/pkg"
)

// Snapshot slot sentinels.
const (
	// Skip leaves a register untouched on set and unread on get.
	Skip int64 = -1

	// Fetch requests the register's current value on get.
	Fetch int64 = -2
)

// Slots is the number of 64-bit slots in a [Registers] snapshot.
const Slots = 24

// Snapshot slot indices. Slot i covers BAR 0 offset i*4 up to MaxOffset;
// the final slot is the FCR.
const (
	SlotFIFOT = 2
	SlotCMDR  = 5
	SlotSTAR  = 6
	SlotCCR0  = 7
	SlotCCR1  = 8
	SlotCCR2  = 9
	SlotBGR   = 10
	SlotSSR   = 11
	SlotSMR   = 12
	SlotTSR   = 13
	SlotTMR   = 14
	SlotRAR   = 15
	SlotRAMR  = 16
	SlotPPR   = 17
	SlotTCR   = 18
	SlotVSTR  = 19
	SlotIMR   = 21
	SlotDPLLR = 22
	SlotFCR   = 23
)

var slotNames = [Slots]string{
	SlotFIFOT: "fifot",
	SlotCMDR:  "cmdr",
	SlotSTAR:  "star",
	SlotCCR0:  "ccr0",
	SlotCCR1:  "ccr1",
	SlotCCR2:  "ccr2",
	SlotBGR:   "bgr",
	SlotSSR:   "ssr",
	SlotSMR:   "smr",
	SlotTSR:   "tsr",
	SlotTMR:   "tmr",
	SlotRAR:   "rar",
	SlotRAMR:  "ramr",
	SlotPPR:   "ppr",
	SlotTCR:   "tcr",
	SlotVSTR:  "vstr",
	SlotIMR:   "imr",
	SlotDPLLR: "dpllr",
	SlotFCR:   "fcr",
}

// Registers is a selective snapshot of the card's register block. Each
// slot holds a 32-bit register value, [Skip] or [Fetch]. Reserved slots
// are always skipped.
type Registers [Slots]int64

// NewRegisters returns a snapshot with every slot set to [Skip].
func NewRegisters() Registers {
	var r Registers
	for i := range r {
		r[i] = Skip
	}
	return r
}

// Defaults returns the register values programmed when a port is
// initialised.
func Defaults() Registers {
	r := NewRegisters()
	r[SlotFIFOT] = 0x08001000
	r[SlotCCR0] = 0x0011201c
	r[SlotCCR1] = 0x00000018
	r[SlotCCR2] = 0x00000000
	r[SlotBGR] = 0x00000000
	r[SlotSSR] = 0x0000007e
	r[SlotSMR] = 0x00000000
	r[SlotTSR] = 0x0000007e
	r[SlotTMR] = 0x00000000
	r[SlotRAR] = 0x00000000
	r[SlotRAMR] = 0x00000000
	r[SlotPPR] = 0x00000000
	r[SlotTCR] = 0x00000000
	r[SlotIMR] = 0x0f000000
	r[SlotDPLLR] = 0x00000004
	r[SlotFCR] = 0x00000000
	return r
}

// SlotName returns the register name of slot i, or "" for reserved slots.
func SlotName(i int) string {
	if i < 0 || i >= Slots {
		return ""
	}
	return slotNames[i]
}

// SlotByName returns the slot holding the named register.
func SlotByName(name string) (int, bool) {
	name = strings.ToLower(name)
	for i, n := range slotNames {
		if n != "" && n == name {
			return i, true
		}
	}
	return 0, false
}

// SlotAddress returns the register location of slot i.
func SlotAddress(i int) Address {
	offset := uint32(i) * 4
	if offset <= MaxOffset {
		return Address{BAR0, offset}
	}
	return Address{BAR2, FCR}
}

// IsReserved reports whether slot i has no register behind it.
func IsReserved(i int) bool {
	return SlotName(i) == ""
}

// Set assigns a named register in the snapshot.
func (r *Registers) Set(name string, value int64) error {
	i, ok := SlotByName(name)
	if !ok {
		return fmt.Errorf("%w: unknown register %q", pkg.ErrInvalidParameter, name)
	}
	r[i] = value
	return nil
}

// Get returns the named register's slot value.
func (r *Registers) Get(name string) (int64, bool) {
	i, ok := SlotByName(name)
	if !ok {
		return 0, false
	}
	return r[i], true
}

// Values returns the named registers that hold a concrete value, keyed by
// register name.
func (r *Registers) Values() map[string]uint32 {
	out := make(map[string]uint32)
	for i, v := range r {
		if IsReserved(i) || v < 0 {
			continue
		}
		out[slotNames[i]] = uint32(v)
	}
	return out
}

// MarshalBinary encodes the snapshot as consecutive little-endian int64
// slots.
func (r Registers) MarshalBinary() ([]byte, error) {
	p := make([]byte, 0, Slots*8)
	for _, v := range r {
		p = binary.LittleEndian.AppendUint64(p, uint64(v))
	}
	return p, nil
}

// UnmarshalBinary decodes a snapshot produced by MarshalBinary.
func (r *Registers) UnmarshalBinary(p []byte) error {
	if len(p) != Slots*8 {
		return fmt.Errorf("%w: register snapshot is %d bytes, want %d",
			pkg.ErrInvalidParameter, len(p), Slots*8)
	}
	for i := range r {
		r[i] = int64(binary.LittleEndian.Uint64(p[i*8:]))
	}
	return nil
}
