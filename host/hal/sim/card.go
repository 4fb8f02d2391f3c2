package sim

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// Identity reported by emulated cards.
const (
	VendorID  = 0x2eb0
	ProductID = 0x0030
)

// statusBytes are appended to every frame received in framed mode.
var statusBytes = [2]byte{0x04, 0x00}

// Card emulates one card.
type Card struct {
	info hal.DeviceInfo

	mutex     sync.Mutex
	regs      map[register.Address]uint32
	responses []byte
	busy      bool

	rxChunks [][]byte // encoded chunks waiting on the data IN endpoint
	rxCounts []uint32 // byte counts waiting in BC_FIFO_L
	rxReady  chan struct{}
	gone     chan struct{} // closed when unplugged

	txData  []byte // transmitted bytes, padding included
	txSizes []int  // frame sizes written to BC_FIFO_L
	txCount int
}

// NewCard returns a card holding the power-on register defaults.
func NewCard() *Card {
	c := &Card{
		info: hal.DeviceInfo{
			VendorID:  VendorID,
			ProductID: ProductID,
			Speed:     hal.SpeedHigh,
			Path:      "sim",
		},
		regs:    make(map[register.Address]uint32),
		rxReady: make(chan struct{}),
		gone:    make(chan struct{}),
	}
	for i, v := range register.Defaults() {
		if v >= 0 {
			c.regs[register.SlotAddress(i)] = uint32(v)
		}
	}
	return c
}

// Info returns the card's device description.
func (c *Card) Info() hal.DeviceInfo {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.info
}

// SetBusy makes STAR report a command in progress.
func (c *Card) SetBusy(busy bool) {
	c.mutex.Lock()
	c.busy = busy
	c.mutex.Unlock()
}

// Register returns the current value of a register.
func (c *Card) Register(bar register.BAR, offset uint32) uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.regs[register.Address{BAR: bar, Offset: offset}]
}

// FramesSent returns the number of frames the card has transmitted.
func (c *Card) FramesSent() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.txCount
}

// Receive delivers data as if it arrived on the line. In framed mode data
// is one frame.
func (c *Card) Receive(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.receive(data)
}

func (c *Card) streaming() bool {
	return register.IsStreaming(
		c.regs[register.Address{BAR: register.BAR0, Offset: register.CCR0}],
		c.regs[register.Address{BAR: register.BAR0, Offset: register.CCR2}])
}

// receive queues data for the host. Called with c.mutex held.
func (c *Card) receive(data []byte) {
	if !c.streaming() {
		data = append(append([]byte(nil), data...), statusBytes[:]...)
		c.rxCounts = append(c.rxCounts, uint32(len(data)))
	}

	const maxPayload = register.MaxChunkSize - register.ChunkHeaderSize
	for len(data) > 0 {
		n := min(len(data), maxPayload)
		c.rxChunks = append(c.rxChunks, register.EncodeChunk(nil, data[:n]))
		data = data[n:]
	}

	close(c.rxReady)
	c.rxReady = make(chan struct{})
}

// transfer services one bulk transfer.
func (c *Card) transfer(ctx context.Context, endpoint uint8, data []byte) (int, error) {
	switch endpoint {
	case register.EndpointCommandOut:
		return c.command(data)
	case register.EndpointCommandIn:
		c.mutex.Lock()
		defer c.mutex.Unlock()
		n := copy(data, c.responses)
		c.responses = c.responses[n:]
		return n, nil
	case register.EndpointDataOut:
		c.mutex.Lock()
		defer c.mutex.Unlock()
		c.txData = append(c.txData, data...)
		c.loopback()
		return len(data), nil
	case register.EndpointDataIn:
		return c.read(ctx, data)
	}
	return 0, pkg.ErrStall
}

// command executes every register command in p.
func (c *Card) command(p []byte) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := 0
	for len(p) > 0 {
		cmd, n, err := register.DecodeCommand(p)
		if err != nil {
			return total, pkg.ErrStall
		}
		if cmd.Write {
			c.write(cmd.Address, cmd.Value)
		} else {
			c.responses = binary.BigEndian.AppendUint32(c.responses, c.value(cmd.Address))
		}
		p = p[n:]
		total += n
	}
	return total, nil
}

// value reads a register. Called with c.mutex held.
func (c *Card) value(a register.Address) uint32 {
	if a.BAR == register.BAR0 {
		switch a.Offset {
		case register.FIFOFC:
			return uint32(len(c.rxCounts))
		case register.BCFL:
			if len(c.rxCounts) == 0 {
				return 0
			}
			v := c.rxCounts[0]
			c.rxCounts = c.rxCounts[1:]
			return v
		case register.FIFOBC:
			return 0
		case register.STAR:
			if c.busy {
				return register.StarCommandExecuting
			}
			return 0
		}
	}
	return c.regs[a]
}

// write stores a register. Called with c.mutex held.
func (c *Card) write(a register.Address, v uint32) {
	if a.BAR == register.BAR0 {
		switch a.Offset {
		case register.BCFL:
			c.txSizes = append(c.txSizes, int(v))
			c.loopback()
			return
		case register.CMDR:
			if v&register.CmdReceiveReset != 0 {
				c.rxChunks = nil
				c.rxCounts = nil
			}
			if v&register.CmdTransmitReset != 0 {
				c.txData = nil
				c.txSizes = nil
			}
			return
		}
	}
	c.regs[a] = v
}

// loopback moves every complete transmitted frame to the receiver. Each
// frame occupies its size rounded up to 4 bytes. Called with c.mutex held.
func (c *Card) loopback() {
	for len(c.txSizes) > 0 {
		size := c.txSizes[0]
		padded := (size + 3) &^ 3
		if len(c.txData) < padded {
			return
		}
		frame := append([]byte(nil), c.txData[:size]...)
		c.txData = c.txData[padded:]
		c.txSizes = c.txSizes[1:]
		c.txCount++
		c.receive(frame)
	}
}

// read waits for a received chunk.
func (c *Card) read(ctx context.Context, data []byte) (int, error) {
	for {
		c.mutex.Lock()
		if len(c.rxChunks) > 0 {
			n := copy(data, c.rxChunks[0])
			c.rxChunks = c.rxChunks[1:]
			c.mutex.Unlock()
			return n, nil
		}
		ready, gone := c.rxReady, c.gone
		c.mutex.Unlock()

		select {
		case <-ready:
		case <-gone:
			return 0, pkg.ErrNoDevice
		case <-ctx.Done():
			return 0, pkg.ErrCancelled
		}
	}
}
