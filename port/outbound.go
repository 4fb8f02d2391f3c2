package port

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/synccom/frame"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// Write queues data as one outbound frame and wakes the transmit worker.
// It does not wait for space: data larger than the output cap fails with
// [pkg.ErrNoBufferSpace] and nothing is queued.
func (p *Port) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) > p.MemoryCap().Output {
		return 0, pkg.ErrNoBufferSpace
	}

	f := frame.New(len(data))
	if err := f.AddData(data); err != nil {
		return 0, err
	}
	f.SetNumber(p.oframeNumber.Add(1))

	p.queuedOMutex.Lock()
	p.queuedOFrames.PushBack(f)
	p.queuedOMutex.Unlock()

	pkg.LogDebug(pkg.ComponentOutbound, "frame queued",
		"port", p.name, "frame", f.Number(), "size", len(data))

	kick(p.transmitKick)
	return len(data), nil
}

// OutputMemoryUsage returns the bytes held by queued frames and the frame
// in flight.
func (p *Port) OutputMemoryUsage() int {
	p.queuedOMutex.Lock()
	usage := p.queuedOFrames.MemoryUsage()
	p.queuedOMutex.Unlock()

	p.pendingOMutex.Lock()
	if p.pendingOFrame != nil {
		usage += p.pendingOFrame.Len()
	}
	p.pendingOMutex.Unlock()

	return usage
}

// roundUp4 rounds n up to a multiple of 4.
func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// transmitStep sends the next chunk of the frame in flight, taking a new
// frame from the queue when none is in flight. It reports whether a chunk
// was sent; false means the queue is empty or the FIFO is full. It never
// waits for FIFO space.
func (p *Port) transmitStep(ctx context.Context) (bool, error) {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	p.pendingOMutex.Lock()
	if p.pendingOFrame == nil {
		p.queuedOMutex.Lock()
		p.pendingOFrame = p.queuedOFrames.PopFront()
		p.queuedOMutex.Unlock()
	}
	f := p.pendingOFrame
	p.pendingOMutex.Unlock()

	if f == nil {
		return false, nil
	}

	fifobc, err := p.regs.Get(ctx, register.BAR0, register.FIFOBC)
	if err != nil {
		return false, fmt.Errorf("read fifo count: %w", err)
	}
	space := register.TxSpace(fifobc)

	remaining := f.Len()
	first := remaining == f.Size()
	n := remaining
	if roundUp4(remaining) > space {
		n = space
	}
	if n == 0 {
		return false, nil
	}

	chunk := make([]byte, n)
	copy(chunk, f.Bytes())
	if err := p.tx.Transmit(ctx, chunk); err != nil {
		return false, fmt.Errorf("transmit frame %d: %w", f.Number(), err)
	}

	p.pendingOMutex.Lock()
	err = f.RemoveData(nil, n)
	done := f.Len() == 0
	if done {
		p.pendingOFrame = nil
	}
	p.pendingOMutex.Unlock()
	if err != nil {
		return false, err
	}

	p.stats.bytesOut.Add(uint64(n))
	pkg.LogDebug(pkg.ComponentOutbound, "chunk sent",
		"port", p.name, "frame", f.Number(), "length", n, "starting", first)

	if first {
		if err := p.beginTransmit(ctx, f.Size()); err != nil {
			pkg.LogWarn(pkg.ComponentOutbound, "transmit command failed",
				"port", p.name, "frame", f.Number(), "error", err)
		}
	}

	if done {
		f.Clear()
		p.stats.framesOut.Add(1)
	}
	p.output.broadcast()
	return true, nil
}

// beginTransmit tells the card the size of the frame now entering the FIFO
// and issues the transmit command.
func (p *Port) beginTransmit(ctx context.Context, size int) error {
	if err := p.regs.Set(ctx, register.BAR0, register.BCFL, uint32(size)); err != nil {
		return fmt.Errorf("set byte count: %w", err)
	}
	return p.executeCommand(ctx, p.TxModifiers().Command())
}

// drainTransmit runs transmit steps until no more progress can be made.
func (p *Port) drainTransmit(ctx context.Context) {
	for ctx.Err() == nil {
		sent, err := p.transmitStep(ctx)
		if err != nil {
			if ctx.Err() == nil {
				pkg.LogWarn(pkg.ComponentOutbound, "transmit step failed",
					"port", p.name, "error", err)
			}
			return
		}
		if !sent {
			return
		}
	}
}

// transmitLoop drains the outbound queue whenever a frame is written and on
// every poll interval, which retries frames waiting for FIFO space.
func (p *Port) transmitLoop(ctx context.Context) {
	defer p.workers.Done()

	pkg.LogDebug(pkg.ComponentOutbound, "transmit worker started", "port", p.name)
	defer pkg.LogDebug(pkg.ComponentOutbound, "transmit worker stopped", "port", p.name)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.transmitKick:
		case <-ticker.C:
		}
		p.drainTransmit(ctx)
	}
}

// PurgeTx resets the card's transmitter and discards every outbound frame.
// If the reset command fails nothing is discarded.
func (p *Port) PurgeTx(ctx context.Context) error {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	if err := p.executeCommand(ctx, register.CmdTransmitReset); err != nil {
		return fmt.Errorf("purge tx: %w", err)
	}

	p.pendingOMutex.Lock()
	p.queuedOMutex.Lock()
	p.queuedOFrames.Clear()
	p.queuedOMutex.Unlock()
	if p.pendingOFrame != nil {
		p.pendingOFrame.Clear()
		p.pendingOFrame = nil
	}
	p.pendingOMutex.Unlock()

	p.output.broadcast()
	pkg.LogInfo(pkg.ComponentOutbound, "tx purged", "port", p.name)
	return nil
}
