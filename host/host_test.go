package host

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/host/hal/sim"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
	"github.com/ardnew/synccom/register"
)

// =============================================================================
// Helpers
// =============================================================================

// testOptions skips the clock so attach stays quick.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Init = &port.InitOptions{Registers: register.Defaults()}
	opts.Port.PollInterval = time.Millisecond
	return opts
}

func startHost(t *testing.T, h hal.HostHAL, opts Options) *Host {
	t.Helper()
	hst := New(h, opts)
	if err := hst.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { hst.Stop() })
	return hst
}

func waitCard(t *testing.T, hst *Host) *Card {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := hst.WaitCard(ctx)
	if err != nil {
		t.Fatalf("WaitCard() error = %v", err)
	}
	return c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// recordHAL records bulk transfers.
type recordHAL struct {
	mu        sync.Mutex
	transfers map[uint8][][]byte
	err       error
}

func (r *recordHAL) Init(context.Context) error { return nil }
func (r *recordHAL) Start() error               { return nil }
func (r *recordHAL) Stop() error                { return nil }
func (r *recordHAL) Close() error               { return nil }
func (r *recordHAL) Devices() []hal.DeviceInfo  { return nil }

func (r *recordHAL) BulkTransfer(_ context.Context, _ hal.DeviceAddress, ep uint8, data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if r.transfers == nil {
		r.transfers = make(map[uint8][][]byte)
	}
	r.transfers[ep] = append(r.transfers[ep], append([]byte(nil), data...))
	return len(data), nil
}

func (r *recordHAL) ClaimInterface(hal.DeviceAddress, uint8) error   { return nil }
func (r *recordHAL) ReleaseInterface(hal.DeviceAddress, uint8) error { return nil }

func (r *recordHAL) WaitForConnection(ctx context.Context) (hal.DeviceInfo, error) {
	<-ctx.Done()
	return hal.DeviceInfo{}, ctx.Err()
}

func (r *recordHAL) WaitForDisconnection(ctx context.Context) (hal.DeviceAddress, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// =============================================================================
// Host Tests
// =============================================================================

func TestHostStartTwice(t *testing.T) {
	hst := startHost(t, sim.NewHostHAL(), testOptions())
	if !hst.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := hst.Start(context.Background()); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want %v", err, pkg.ErrAlreadyRunning)
	}
}

func TestHostAttach(t *testing.T) {
	h := sim.NewHostHAL()
	card := sim.NewCard()
	addr := h.Plug(card)

	opts := testOptions()
	opts.Init.Registers[register.SlotCCR1] = 0x99
	hst := startHost(t, h, opts)

	c := waitCard(t, hst)
	if c.Address() != addr || c.Port().Name() != "synccom0" {
		t.Errorf("card = %d %q, want %d synccom0", c.Address(), c.Port().Name(), addr)
	}
	if !h.Claimed(addr, DefaultInterface) {
		t.Error("interface not claimed")
	}
	if got := card.Register(register.BAR0, register.CCR1); got != 0x99 {
		t.Errorf("CCR1 = %#x, want 0x99", got)
	}
	if e, ok := hst.Registry().Lookup("synccom0"); !ok || e.Port != c.Port() {
		t.Error("port not registered")
	}
	if !c.Port().IsRunning() {
		t.Error("port not started")
	}
	if hst.Card(addr) != c || len(hst.Cards()) != 1 {
		t.Error("card not tracked")
	}
}

func TestHostFilter(t *testing.T) {
	h := sim.NewHostHAL()
	h.Plug(sim.NewCard())

	opts := testOptions()
	opts.Filter.ProductID = 0x9999
	hst := startHost(t, h, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := hst.WaitCard(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitCard() error = %v, want deadline", err)
	}
	if hst.Registry().Len() != 0 {
		t.Errorf("Registry().Len() = %d, want 0", hst.Registry().Len())
	}
}

func TestHostDetach(t *testing.T) {
	h := sim.NewHostHAL()
	addr := h.Plug(sim.NewCard())
	hst := startHost(t, h, testOptions())

	detached := make(chan *Card, 1)
	hst.SetOnDetach(func(c *Card) { detached <- c })

	c := waitCard(t, hst)
	f, err := c.Port().Open(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	readErr := make(chan error, 1)
	go func() {
		_, err := f.Read(make([]byte, 16))
		readErr <- err
	}()

	h.Unplug(addr)

	select {
	case got := <-detached:
		if got != c {
			t.Error("detach callback received another card")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("detach callback not called")
	}
	if !c.Port().IsClosed() || hst.Registry().Len() != 0 || hst.Card(addr) != nil {
		t.Error("card not fully detached")
	}
	select {
	case err := <-readErr:
		if !errors.Is(err, pkg.ErrClosed) {
			t.Errorf("blocked Read() error = %v, want %v", err, pkg.ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Read() not woken")
	}
}

func TestHostStop(t *testing.T) {
	h := sim.NewHostHAL()
	h.Plug(sim.NewCard())
	h.Plug(sim.NewCard())
	hst := New(h, testOptions())
	if err := hst.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := waitCard(t, hst)
	waitCard(t, hst)

	if err := hst.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if hst.IsRunning() || len(hst.Cards()) != 0 || hst.Registry().Len() != 0 {
		t.Error("host state not cleared")
	}
	if !c.Port().IsClosed() {
		t.Error("port not closed")
	}
}

// =============================================================================
// Data Path Tests
// =============================================================================

func TestFramedLoopback(t *testing.T) {
	h := sim.NewHostHAL()
	card := sim.NewCard()
	h.Plug(card)
	hst := startHost(t, h, testOptions())
	c := waitCard(t, hst)

	f, err := c.Port().Open(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := [][]byte{[]byte("hello"), bytes.Repeat([]byte{0xa5}, 1500)}
	for _, want := range frames {
		if _, err := f.Write(want); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		buf := make([]byte, 4096)
		n, err := f.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			t.Fatalf("ReadContext() error = %v", err)
		}
		if !bytes.Equal(buf[:n], want) {
			t.Errorf("read %d bytes, want %d byte frame", n, len(want))
		}
	}
	if card.FramesSent() != len(frames) {
		t.Errorf("FramesSent() = %d, want %d", card.FramesSent(), len(frames))
	}
}

func TestStreamingReceive(t *testing.T) {
	h := sim.NewHostHAL()
	card := sim.NewCard()
	h.Plug(card)

	opts := testOptions()
	opts.Init.Registers[register.SlotCCR0] = 0x2
	hst := startHost(t, h, opts)
	c := waitCard(t, hst)

	if !c.Port().IsStreaming() {
		t.Fatal("port not streaming")
	}

	card.Receive([]byte("abcdef"))
	eventually(t, c.Port().HasIncomingData, "no incoming data")

	buf := make([]byte, 16)
	n, err := c.Port().Read(buf)
	if err != nil || string(buf[:n]) != "abcdef" {
		t.Errorf("Read() = %q, %v", buf[:n], err)
	}
}

func TestTransmitPadding(t *testing.T) {
	rec := &recordHAL{}
	c := &Card{host: &Host{hal: rec}, info: hal.DeviceInfo{Address: 1}}

	tests := []struct {
		in   []byte
		want []byte
	}{
		{[]byte{1, 2, 3, 4}, []byte{1, 2, 3, 4}},
		{[]byte{1, 2, 3, 4, 5}, []byte{1, 2, 3, 4, 5, 0, 0, 0}},
		{[]byte{1, 2}, []byte{1, 2, 0, 0}},
	}
	for i, tt := range tests {
		if err := c.Transmit(context.Background(), tt.in); err != nil {
			t.Fatalf("Transmit() error = %v", err)
		}
		got := rec.transfers[register.EndpointDataOut][i]
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Transmit(%v) sent %v, want %v", tt.in, got, tt.want)
		}
	}

	rec.err = pkg.ErrStall
	if err := c.Transmit(context.Background(), []byte{1}); !errors.Is(err, pkg.ErrStall) {
		t.Errorf("Transmit() error = %v, want %v", err, pkg.ErrStall)
	}
}

func TestCommandPipe(t *testing.T) {
	rec := &recordHAL{}
	c := &Card{host: &Host{hal: rec}, info: hal.DeviceInfo{Address: 1}}
	bus := register.NewBus(commandPipe{card: c})

	if err := bus.Set(context.Background(), register.BAR2, register.FCR, 7); err != nil {
		t.Fatal(err)
	}
	want := register.EncodeSet(register.BAR2, register.FCR, 7)
	if got := rec.transfers[register.EndpointCommandOut]; len(got) != 1 || !bytes.Equal(got[0], want[:]) {
		t.Errorf("command OUT = %v, want %v", got, want)
	}
}
