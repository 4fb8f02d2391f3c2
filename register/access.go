package register

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ardnew/synccom/pkg"
)

// Access reads and writes 32-bit card registers. Implementations serialise
// calls.
type Access interface {
	// Get returns the value of the register at offset in bar.
	Get(ctx context.Context, bar BAR, offset uint32) (uint32, error)

	// Set writes value to the register at offset in bar.
	Set(ctx context.Context, bar BAR, offset uint32, value uint32) error
}

// Pipe is the bulk command channel a [Bus] drives.
type Pipe interface {
	// WriteCommand sends one command message.
	WriteCommand(ctx context.Context, p []byte) (int, error)

	// ReadResponse receives one response message into p.
	ReadResponse(ctx context.Context, p []byte) (int, error)
}

// Command bytes.
const (
	opGet byte = 0x6b
	opSet byte = 0x6a
)

// Message sizes.
const (
	getCommandSize  = 3
	setCommandSize  = 7
	getResponseSize = 4
)

// Bus implements [Access] over a bulk command pipe.
type Bus struct {
	pipe  Pipe
	mutex sync.Mutex
}

// NewBus returns a Bus sending commands through p.
func NewBus(p Pipe) *Bus {
	return &Bus{pipe: p}
}

// Get issues a register read and waits for its response.
func (b *Bus) Get(ctx context.Context, bar BAR, offset uint32) (uint32, error) {
	cmd := EncodeGet(bar, offset)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.write(ctx, cmd[:]); err != nil {
		return 0, err
	}

	var resp [getResponseSize]byte
	n, err := b.pipe.ReadResponse(ctx, resp[:])
	if err != nil {
		return 0, fmt.Errorf("register response: %w", err)
	}
	if n != getResponseSize {
		return 0, fmt.Errorf("register response: %w: got %d bytes", pkg.ErrShortTransfer, n)
	}

	value := binary.BigEndian.Uint32(resp[:])
	pkg.LogDebug(pkg.ComponentRegister, "get",
		"bar", bar, "offset", fmt.Sprintf("%#02x", offset), "value", fmt.Sprintf("%#08x", value))
	return value, nil
}

// Set issues a register write.
func (b *Bus) Set(ctx context.Context, bar BAR, offset uint32, value uint32) error {
	cmd := EncodeSet(bar, offset, value)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.write(ctx, cmd[:]); err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentRegister, "set",
		"bar", bar, "offset", fmt.Sprintf("%#02x", offset), "value", fmt.Sprintf("%#08x", value))
	return nil
}

func (b *Bus) write(ctx context.Context, cmd []byte) error {
	n, err := b.pipe.WriteCommand(ctx, cmd)
	if err != nil {
		return fmt.Errorf("register command: %w", err)
	}
	if n != len(cmd) {
		return fmt.Errorf("register command: %w: sent %d of %d bytes", pkg.ErrShortTransfer, n, len(cmd))
	}
	return nil
}

// EncodeGet builds the read command for a register.
func EncodeGet(bar BAR, offset uint32) [getCommandSize]byte {
	addr := wireAddress(bar, offset)
	return [getCommandSize]byte{opGet, byte(addr >> 8), byte(addr)}
}

// EncodeSet builds the write command for a register.
func EncodeSet(bar BAR, offset uint32, value uint32) [setCommandSize]byte {
	addr := wireAddress(bar, offset)
	cmd := [setCommandSize]byte{opSet, byte(addr >> 8), byte(addr)}
	binary.BigEndian.PutUint32(cmd[3:], value)
	return cmd
}
