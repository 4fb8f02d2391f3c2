package register

import (
	"sort"
	"strings"
)

// BAR selects a register bank.
type BAR uint8

// Register banks.
const (
	BAR0 BAR = 0 // framer registers
	BAR2 BAR = 2 // feature control
)

// BAR 0 register offsets.
const (
	FIFO   uint32 = 0x00
	BCFL   uint32 = 0x04 // BC_FIFO_L, byte count of the next frame
	FIFOT  uint32 = 0x08
	FIFOBC uint32 = 0x0c
	FIFOFC uint32 = 0x10
	CMDR   uint32 = 0x14
	STAR   uint32 = 0x18
	CCR0   uint32 = 0x1c
	CCR1   uint32 = 0x20
	CCR2   uint32 = 0x24
	BGR    uint32 = 0x28
	SSR    uint32 = 0x2c
	SMR    uint32 = 0x30
	TSR    uint32 = 0x34
	TMR    uint32 = 0x38
	RAR    uint32 = 0x3c
	RAMR   uint32 = 0x40
	PPR    uint32 = 0x44
	TCR    uint32 = 0x48
	VSTR   uint32 = 0x4c
	ISR    uint32 = 0x50
	IMR    uint32 = 0x54
	DPLLR  uint32 = 0x58
	FSTEL  uint32 = 0x5c
	FSTEW  uint32 = 0x60

	// MaxOffset is the highest framer register in a snapshot.
	MaxOffset = DPLLR
)

// BAR 2 register offsets.
const (
	FCR uint32 = 0x40
)

// CMDR commands.
const (
	CmdTransmitReset uint32 = 0x08000000 // TRES
	CmdReceiveReset  uint32 = 0x00020000 // RRES
	CmdTransmitFrame uint32 = 0x01000000 // XF
	CmdTransmitRep   uint32 = 0x02000000 // XREP
	CmdTransmitTimed uint32 = 0x10000000 // TXT
	CmdTransmitExt   uint32 = 0x20000000 // TXEXT
)

// STAR bits.
const (
	// StarCommandExecuting is set while the previous command is in progress.
	StarCommandExecuting uint32 = 0x00040000
)

// FIFO geometry and counter fields.
const (
	// TxFIFOSize is the size of the transmit FIFO in bytes.
	TxFIFOSize = 4096

	// RxFIFOSize bounds the receive byte counter.
	RxFIFOSize = 8192

	txCountMask   uint32 = 0x1fff0000
	rxCountMask   uint32 = 0x00003fff
	rxFramesMask  uint32 = 0x000003ff
	txCountShift         = 16
)

// TxCount extracts the number of bytes waiting in the transmit FIFO from a
// FIFO_BC value.
func TxCount(fifobc uint32) int {
	return int((fifobc & txCountMask) >> txCountShift)
}

// RxCount extracts the number of bytes waiting in the receive FIFO from a
// FIFO_BC value.
func RxCount(fifobc uint32) int {
	return min(int(fifobc&rxCountMask), RxFIFOSize)
}

// RxFrames extracts the number of received frame byte counts waiting in
// the hardware from a FIFO_FC value.
func RxFrames(fifofc uint32) int {
	return int(fifofc & rxFramesMask)
}

// TxSpace returns the usable transmit FIFO space for a FIFO_BC value. One
// byte is held back and the result is rounded down to a 4-byte multiple.
func TxSpace(fifobc uint32) int {
	space := TxFIFOSize - TxCount(fifobc) - 1
	if space < 0 {
		return 0
	}
	return space &^ 3
}

// Address is a named register location.
type Address struct {
	BAR    BAR
	Offset uint32
}

var names = map[string]Address{
	"fifo":   {BAR0, FIFO},
	"bcfl":   {BAR0, BCFL},
	"fifot":  {BAR0, FIFOT},
	"fifobc": {BAR0, FIFOBC},
	"fifofc": {BAR0, FIFOFC},
	"cmdr":   {BAR0, CMDR},
	"star":   {BAR0, STAR},
	"ccr0":   {BAR0, CCR0},
	"ccr1":   {BAR0, CCR1},
	"ccr2":   {BAR0, CCR2},
	"bgr":    {BAR0, BGR},
	"ssr":    {BAR0, SSR},
	"smr":    {BAR0, SMR},
	"tsr":    {BAR0, TSR},
	"tmr":    {BAR0, TMR},
	"rar":    {BAR0, RAR},
	"ramr":   {BAR0, RAMR},
	"ppr":    {BAR0, PPR},
	"tcr":    {BAR0, TCR},
	"vstr":   {BAR0, VSTR},
	"isr":    {BAR0, ISR},
	"imr":    {BAR0, IMR},
	"dpllr":  {BAR0, DPLLR},
	"fstel":  {BAR0, FSTEL},
	"fstew":  {BAR0, FSTEW},
	"fcr":    {BAR2, FCR},
}

// Lookup returns the location of the register with the given name. Names
// are case-insensitive.
func Lookup(name string) (Address, bool) {
	a, ok := names[strings.ToLower(name)]
	return a, ok
}

// Names returns every known register name in sorted order.
func Names() []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// IsReadOnly reports whether writes to the register are ignored.
func IsReadOnly(bar BAR, offset uint32) bool {
	return bar == BAR0 && (offset == STAR || offset == VSTR)
}

// bar0WireFlag marks a BAR 0 wire address.
const bar0WireFlag uint16 = 0x8000

// wireAddress converts a bank and offset into the 16-bit address carried
// by register commands.
func wireAddress(bar BAR, offset uint32) uint16 {
	if bar == BAR0 {
		return bar0WireFlag | uint16(offset<<1)
	}
	return uint16(offset)
}
