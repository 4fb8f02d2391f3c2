package sim

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// bus returns a register bus talking to the card at addr.
func bus(h *HostHAL, addr hal.DeviceAddress) *register.Bus {
	return register.NewBus(pipe{h: h, addr: addr})
}

type pipe struct {
	h    *HostHAL
	addr hal.DeviceAddress
}

func (p pipe) WriteCommand(ctx context.Context, b []byte) (int, error) {
	return p.h.BulkTransfer(ctx, p.addr, register.EndpointCommandOut, b)
}

func (p pipe) ReadResponse(ctx context.Context, b []byte) (int, error) {
	return p.h.BulkTransfer(ctx, p.addr, register.EndpointCommandIn, b)
}

func readChunk(t *testing.T, h *HostHAL, addr hal.DeviceAddress) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw := make([]byte, register.MaxChunkSize)
	n, err := h.BulkTransfer(ctx, addr, register.EndpointDataIn, raw)
	if err != nil {
		t.Fatalf("data IN error = %v", err)
	}
	payload, err := register.DecodeChunk(raw[:n])
	if err != nil {
		t.Fatalf("DecodeChunk() error = %v", err)
	}
	return payload
}

func TestPlugUnplug(t *testing.T) {
	h := NewHostHAL()
	defer h.Close()
	ctx := context.Background()

	addr := h.Plug(NewCard())
	info, err := h.WaitForConnection(ctx)
	if err != nil || info.Address != addr || info.VendorID != VendorID {
		t.Fatalf("WaitForConnection() = %+v, %v", info, err)
	}
	if err := h.ClaimInterface(addr, 0); err != nil || !h.Claimed(addr, 0) {
		t.Errorf("ClaimInterface() error = %v", err)
	}
	if len(h.Devices()) != 1 {
		t.Errorf("Devices() = %v", h.Devices())
	}

	h.Unplug(addr)
	if got, err := h.WaitForDisconnection(ctx); err != nil || got != addr {
		t.Errorf("WaitForDisconnection() = %d, %v", got, err)
	}
	if _, err := h.BulkTransfer(ctx, addr, register.EndpointDataIn, nil); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("BulkTransfer() after unplug error = %v", err)
	}
}

func TestRegisters(t *testing.T) {
	h := NewHostHAL()
	defer h.Close()
	card := NewCard()
	addr := h.Plug(card)
	b := bus(h, addr)
	ctx := context.Background()

	v, err := b.Get(ctx, register.BAR0, register.CCR0)
	if err != nil || v != 0x0011201c {
		t.Errorf("Get(CCR0) = %#x, %v", v, err)
	}
	if err := b.Set(ctx, register.BAR2, register.FCR, 0x55); err != nil {
		t.Fatal(err)
	}
	if got := card.Register(register.BAR2, register.FCR); got != 0x55 {
		t.Errorf("FCR = %#x", got)
	}

	card.SetBusy(true)
	if v, _ := b.Get(ctx, register.BAR0, register.STAR); v&register.StarCommandExecuting == 0 {
		t.Error("STAR does not report busy")
	}
}

func TestFramedLoopback(t *testing.T) {
	h := NewHostHAL()
	defer h.Close()
	card := NewCard()
	addr := h.Plug(card)
	b := bus(h, addr)
	ctx := context.Background()

	// 6-byte frame sent as one chunk padded to 8, then its size.
	if _, err := h.BulkTransfer(ctx, addr, register.EndpointDataOut, []byte("hello!\x00\x00")); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, register.BAR0, register.BCFL, 6); err != nil {
		t.Fatal(err)
	}
	if card.FramesSent() != 1 {
		t.Fatalf("FramesSent() = %d", card.FramesSent())
	}

	if got := readChunk(t, h, addr); !bytes.Equal(got, []byte("hello!\x04\x00")) {
		t.Errorf("looped chunk = %q", got)
	}
	if n, _ := b.Get(ctx, register.BAR0, register.FIFOFC); register.RxFrames(n) != 1 {
		t.Errorf("FIFOFC frames = %d", register.RxFrames(n))
	}
	if n, _ := b.Get(ctx, register.BAR0, register.BCFL); n != 8 {
		t.Errorf("BCFL = %d, want 8", n)
	}
}

func TestStreamingReceive(t *testing.T) {
	h := NewHostHAL()
	defer h.Close()
	card := NewCard()
	addr := h.Plug(card)
	if err := bus(h, addr).Set(context.Background(), register.BAR0, register.CCR0, 0x2); err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte("x"), 600)
	card.Receive(data)

	first := readChunk(t, h, addr)
	second := readChunk(t, h, addr)
	if len(first) != register.MaxChunkSize-register.ChunkHeaderSize || len(first)+len(second) != 600 {
		t.Errorf("chunks = %d + %d bytes", len(first), len(second))
	}
}

func TestReceiveReset(t *testing.T) {
	h := NewHostHAL()
	defer h.Close()
	card := NewCard()
	addr := h.Plug(card)
	b := bus(h, addr)
	ctx := context.Background()

	card.Receive([]byte("stale"))
	if err := b.Set(ctx, register.BAR0, register.CMDR, register.CmdReceiveReset); err != nil {
		t.Fatal(err)
	}
	if n, _ := b.Get(ctx, register.BAR0, register.FIFOFC); n != 0 {
		t.Errorf("FIFOFC after RRES = %d", n)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := h.BulkTransfer(ctx, addr, register.EndpointDataIn, make([]byte, 512)); !errors.Is(err, pkg.ErrCancelled) {
		t.Errorf("data IN after RRES error = %v, want %v", err, pkg.ErrCancelled)
	}
}
