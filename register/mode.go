package register

import (
	"fmt"
	"strings"

	"github.com/ardnew/synccom/pkg"
)

const (
	modeMask        uint32 = 0x00000003
	modeTransparent uint32 = 0x2
	modeXSync       uint32 = 0x1
	fscMask         uint32 = 0x00000700
	ntbMask         uint32 = 0x00070000
	rlcMask         uint32 = 0xffff0000
)

// IsStreaming reports whether the configuration registers select streaming
// mode: transparent or x-sync framing with no receive length check, frame
// sync control, or n-bit termination configured.
func IsStreaming(ccr0, ccr2 uint32) bool {
	mode := ccr0 & modeMask
	if mode != modeTransparent && mode != modeXSync {
		return false
	}
	return ccr2&rlcMask == 0 && ccr0&fscMask == 0 && ccr0&ntbMask == 0
}

// TxModifiers selects how a frame is transmitted.
type TxModifiers uint32

// Transmit modifiers.
const (
	XF    TxModifiers = 0 // transmit once
	XREP  TxModifiers = 1 // transmit repeatedly
	TXT   TxModifiers = 2 // transmit on timer
	TXEXT TxModifiers = 4 // transmit on external signal
)

// Valid reports whether m is a supported combination.
func (m TxModifiers) Valid() bool {
	switch m {
	case XF, XF | TXT, XF | TXEXT, XREP, XREP | TXT:
		return true
	}
	return false
}

// Command returns the CMDR value that starts a transmission with m.
func (m TxModifiers) Command() uint32 {
	cmd := CmdTransmitFrame
	if m&XREP != 0 {
		cmd = CmdTransmitRep
	}
	if m&TXT != 0 {
		cmd |= CmdTransmitTimed
	}
	if m&TXEXT != 0 {
		cmd |= CmdTransmitExt
	}
	return cmd
}

// String returns the modifier names joined by "|".
func (m TxModifiers) String() string {
	parts := []string{"XF"}
	if m&XREP != 0 {
		parts[0] = "XREP"
	}
	if m&TXT != 0 {
		parts = append(parts, "TXT")
	}
	if m&TXEXT != 0 {
		parts = append(parts, "TXEXT")
	}
	return strings.Join(parts, "|")
}

// ParseTxModifiers combines modifier names such as "XREP" and "TXT". The
// result is validated.
func ParseTxModifiers(names ...string) (TxModifiers, error) {
	var m TxModifiers
	for _, n := range names {
		for _, part := range strings.Split(n, "|") {
			switch strings.ToUpper(strings.TrimSpace(part)) {
			case "XF", "":
			case "XREP":
				m |= XREP
			case "TXT":
				m |= TXT
			case "TXEXT":
				m |= TXEXT
			default:
				return 0, fmt.Errorf("%w: %q", pkg.ErrInvalidModifier, part)
			}
		}
	}
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %s", pkg.ErrInvalidModifier, m)
	}
	return m, nil
}
