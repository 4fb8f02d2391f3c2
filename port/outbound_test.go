package port

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// drain runs transmit steps until the port stops making progress.
func drain(t *testing.T, p *Port) int {
	t.Helper()
	steps := 0
	for {
		sent, err := p.transmitStep(context.Background())
		if err != nil {
			t.Fatalf("transmitStep() error = %v", err)
		}
		if !sent {
			return steps
		}
		steps++
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)

	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	n, err := p.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if got := p.OutputMemoryUsage(); got != len(data) {
		t.Errorf("OutputMemoryUsage() = %d, want %d", got, len(data))
	}

	drain(t, p)

	if !bytes.Equal(tx.bytes(), data) {
		t.Fatal("transmitted bytes differ from written bytes")
	}
	space := register.TxSpace(0)
	for i, c := range tx.chunks {
		if len(c) > space {
			t.Errorf("chunk %d is %d bytes, FIFO space %d", i, len(c), space)
		}
		if i < len(tx.chunks)-1 && len(c)%4 != 0 {
			t.Errorf("chunk %d is %d bytes, not 4-byte aligned", i, len(c))
		}
	}
	if len(tx.chunks) != 3 {
		t.Errorf("chunks = %d, want 3", len(tx.chunks))
	}
	if got := p.OutputMemoryUsage(); got != 0 {
		t.Errorf("OutputMemoryUsage() = %d after drain", got)
	}

	if bc := regs.writesTo(register.BAR0, register.BCFL); len(bc) != 1 || bc[0] != 10000 {
		t.Errorf("BC_FIFO_L writes = %v, want [10000]", bc)
	}
	if cmd := regs.writesTo(register.BAR0, register.CMDR); len(cmd) != 1 || cmd[0] != register.CmdTransmitFrame {
		t.Errorf("CMDR writes = %#x, want [XF]", cmd)
	}
	if s := p.Stats(); s.FramesOut != 1 || s.BytesOut != 10000 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestWrite_CommandFollowsFirstChunk(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)

	_, _ = p.Write(seq(0, 5000))
	if sent, err := p.transmitStep(context.Background()); !sent || err != nil {
		t.Fatalf("transmitStep() = %v, %v", sent, err)
	}
	if len(tx.chunks) != 1 || len(regs.writesTo(register.BAR0, register.CMDR)) != 1 {
		t.Fatalf("after first chunk: %d chunks, %d commands",
			len(tx.chunks), len(regs.writesTo(register.BAR0, register.CMDR)))
	}

	if sent, err := p.transmitStep(context.Background()); !sent || err != nil {
		t.Fatalf("transmitStep() = %v, %v", sent, err)
	}
	if n := len(regs.writesTo(register.BAR0, register.CMDR)); n != 1 {
		t.Errorf("CMDR writes = %d, want 1", n)
	}
}

func TestWrite_ExceedsCap(t *testing.T) {
	p, _, _ := newTestPort(t, func(c *Config) { c.MemoryCap.Output = 16 })

	if _, err := p.Write(make([]byte, 17)); !errors.Is(err, pkg.ErrNoBufferSpace) {
		t.Fatalf("Write() error = %v, want %v", err, pkg.ErrNoBufferSpace)
	}
	if got := p.OutputMemoryUsage(); got != 0 {
		t.Errorf("OutputMemoryUsage() = %d, want 0", got)
	}
	if n, err := p.Write(make([]byte, 16)); err != nil || n != 16 {
		t.Errorf("Write() = %d, %v", n, err)
	}
	if n, err := p.Write(nil); err != nil || n != 0 {
		t.Errorf("Write(nil) = %d, %v", n, err)
	}
}

func TestTransmitStep_FIFOFull(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)
	regs.setValue(register.BAR0, register.FIFOBC, 0x0ffd0000)

	_, _ = p.Write(seq(0, 8))
	sent, err := p.transmitStep(context.Background())
	if sent || err != nil {
		t.Fatalf("transmitStep() = %v, %v, want false, nil", sent, err)
	}
	if len(tx.chunks) != 0 {
		t.Errorf("chunks sent with a full FIFO: %d", len(tx.chunks))
	}
	if got := p.OutputMemoryUsage(); got != 8 {
		t.Errorf("OutputMemoryUsage() = %d, want 8", got)
	}

	regs.setValue(register.BAR0, register.FIFOBC, 0)
	drain(t, p)
	if !bytes.Equal(tx.bytes(), seq(0, 8)) {
		t.Errorf("transmitted %v", tx.bytes())
	}
}

func TestTransmitStep_ChunkLimitedBySpace(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)
	// 4096 - 4083 - 1 = 12 bytes of space.
	regs.setValue(register.BAR0, register.FIFOBC, 4083<<16)

	_, _ = p.Write(seq(0, 30))
	if sent, _ := p.transmitStep(context.Background()); !sent {
		t.Fatal("transmitStep() sent nothing")
	}
	if len(tx.chunks[0]) != 12 {
		t.Errorf("chunk = %d bytes, want 12", len(tx.chunks[0]))
	}
	if got := p.OutputMemoryUsage(); got != 18 {
		t.Errorf("OutputMemoryUsage() = %d, want 18", got)
	}
}

func TestTransmitStep_FIFOOrder(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)
	if err := p.SetTxModifiers(register.XREP | register.TXT); err != nil {
		t.Fatal(err)
	}

	_, _ = p.Write([]byte("first"))
	_, _ = p.Write([]byte("second"))
	drain(t, p)

	if len(tx.chunks) != 2 || string(tx.chunks[0]) != "first" || string(tx.chunks[1]) != "second" {
		t.Errorf("chunks = %q", tx.chunks)
	}
	cmds := regs.writesTo(register.BAR0, register.CMDR)
	if len(cmds) != 2 || cmds[0] != 0x12000000 {
		t.Errorf("CMDR writes = %#x", cmds)
	}
	if bc := regs.writesTo(register.BAR0, register.BCFL); len(bc) != 2 || bc[0] != 5 || bc[1] != 6 {
		t.Errorf("BC_FIFO_L writes = %v", bc)
	}
}

func TestTransmitStep_TransportError(t *testing.T) {
	p, _, tx := newTestPort(t, nil)
	tx.err = pkg.ErrStall

	_, _ = p.Write(seq(0, 8))
	if _, err := p.transmitStep(context.Background()); !errors.Is(err, pkg.ErrStall) {
		t.Fatalf("transmitStep() error = %v, want %v", err, pkg.ErrStall)
	}
	if got := p.OutputMemoryUsage(); got != 8 {
		t.Errorf("OutputMemoryUsage() = %d, want 8", got)
	}

	tx.err = nil
	drain(t, p)
	if !bytes.Equal(tx.bytes(), seq(0, 8)) {
		t.Errorf("transmitted %v after retry", tx.bytes())
	}
}

func TestTransmitStep_CommandTimeout(t *testing.T) {
	tests := []struct {
		name     string
		ignore   bool
		wantCmds int
	}{
		{"checked", false, 0},
		{"ignored", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, regs, tx := newTestPort(t, func(c *Config) { c.IgnoreTimeout = tt.ignore })
			regs.busy = true

			_, _ = p.Write(seq(0, 8))
			drain(t, p)

			if len(tx.chunks) != 1 {
				t.Errorf("chunks = %d, want 1", len(tx.chunks))
			}
			if n := len(regs.writesTo(register.BAR0, register.CMDR)); n != tt.wantCmds {
				t.Errorf("CMDR writes = %d, want %d", n, tt.wantCmds)
			}
		})
	}
}

func TestPurgeTx(t *testing.T) {
	p, regs, tx := newTestPort(t, nil)
	ctx := context.Background()

	_, _ = p.Write(seq(0, 5000))
	_, _ = p.Write(seq(0, 10))
	if _, err := p.transmitStep(ctx); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := p.PurgeTx(ctx); err != nil {
			t.Fatalf("PurgeTx() #%d error = %v", i, err)
		}
		if got := p.OutputMemoryUsage(); got != 0 {
			t.Errorf("OutputMemoryUsage() = %d after purge", got)
		}
	}
	if n := drain(t, p); n != 0 {
		t.Errorf("%d chunks sent after purge", n)
	}
	if len(tx.chunks) != 1 {
		t.Errorf("chunks = %d, want 1", len(tx.chunks))
	}
	cmds := regs.writesTo(register.BAR0, register.CMDR)
	if len(cmds) != 3 || cmds[1] != register.CmdTransmitReset || cmds[2] != register.CmdTransmitReset {
		t.Errorf("CMDR writes = %#x", cmds)
	}
}

func TestPurgeTx_FailureLeavesState(t *testing.T) {
	p, regs, _ := newTestPort(t, nil)
	_, _ = p.Write(seq(0, 10))

	regs.busy = true
	if err := p.PurgeTx(context.Background()); !errors.Is(err, pkg.ErrTimeout) {
		t.Fatalf("PurgeTx() error = %v, want %v", err, pkg.ErrTimeout)
	}
	if got := p.OutputMemoryUsage(); got != 10 {
		t.Errorf("OutputMemoryUsage() = %d, want 10", got)
	}
}

func TestTransmitWorker(t *testing.T) {
	p, _, tx := newTestPort(t, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, _ = p.Write([]byte("hello"))
	eventually(t, func() bool { return p.OutputMemoryUsage() == 0 })
	if string(tx.bytes()) != "hello" {
		t.Errorf("transmitted %q", tx.bytes())
	}
}
