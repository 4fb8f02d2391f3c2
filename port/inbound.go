package port

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/synccom/frame"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// Ingest admits one chunk of inbound bytes from the transport. It never
// blocks on the card and never reports an error: a chunk that would exceed
// the input cap, or cannot be buffered, is dropped whole and logged once
// per overflow episode.
func (p *Port) Ingest(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	if p.cfg.Inspector != nil && p.cfg.Inspector.Inspect(chunk) {
		p.stats.suspectChunks.Add(1)
		pkg.LogDebug(pkg.ComponentInbound, "suspect chunk",
			"port", p.name, "length", len(chunk))
	}

	limit := p.MemoryCap().Input
	if usage := p.InputMemoryUsage(); usage+len(chunk) > limit {
		p.reject(chunk, pkg.ErrOverflow, "usage", usage, "cap", limit)
		return
	}

	p.istreamMutex.Lock()
	err := p.istream.AddData(chunk)
	p.istreamMutex.Unlock()

	if err != nil {
		p.reject(chunk, err)
		return
	}

	if p.rejecting.Swap(false) {
		pkg.LogInfo(pkg.ComponentInbound, "accepting data again", "port", p.name)
	}
	p.stats.bytesIn.Add(uint64(len(chunk)))

	if p.IsStreaming() {
		p.input.broadcast()
		return
	}

	p.assemble()
	kick(p.countKick)
}

// reject drops chunk and warns unless a warning is already outstanding.
func (p *Port) reject(chunk []byte, cause error, args ...any) {
	p.stats.droppedChunks.Add(1)
	p.stats.droppedBytes.Add(uint64(len(chunk)))

	if p.rejecting.Swap(true) {
		return
	}
	pkg.LogWarn(pkg.ComponentInbound, "rejecting data",
		append([]any{"port", p.name, "error", cause, "length", len(chunk)}, args...)...)
}

// InputMemoryUsage returns the bytes held by queued frames and the stream.
func (p *Port) InputMemoryUsage() int {
	p.queuedIMutex.Lock()
	usage := p.queuedIFrames.MemoryUsage()
	p.queuedIMutex.Unlock()

	p.istreamMutex.Lock()
	usage += p.istream.Len()
	p.istreamMutex.Unlock()

	return usage
}

// HasIncomingData reports whether a read would find something: stream
// bytes in streaming mode, a complete frame at the head of the queue in
// framed mode.
func (p *Port) HasIncomingData() bool {
	if p.IsStreaming() {
		p.istreamMutex.Lock()
		defer p.istreamMutex.Unlock()
		return !p.istream.IsEmpty()
	}

	p.queuedIMutex.Lock()
	defer p.queuedIMutex.Unlock()
	f := p.queuedIFrames.PeekFront()
	return f != nil && f.IsComplete()
}

// ===========================================================================
// Frame assembly
// ===========================================================================

// assemble completes pending frames whose bytes have all arrived in the
// stream and moves them to the queued list.
func (p *Port) assemble() {
	p.assembleMutex.Lock()
	defer p.assembleMutex.Unlock()

	completed := 0
	for {
		f, err := p.completeFront()
		if f == nil && err == nil {
			break
		}
		if err != nil {
			pkg.LogWarn(pkg.ComponentInbound, "dropping frame",
				"port", p.name, "frame", f.Number(), "size", f.Size(), "error", err)
			continue
		}

		f.Stamp(p.cfg.Now())

		p.queuedIMutex.Lock()
		p.queuedIFrames.PushBack(f)
		p.queuedIMutex.Unlock()

		p.stats.framesIn.Add(1)
		completed++
		pkg.LogDebug(pkg.ComponentInbound, "frame complete",
			"port", p.name, "frame", f.Number(), "size", f.Size())
	}

	if completed > 0 {
		p.input.broadcast()
	}
}

// completeFront pops the front pending frame and fills it from the stream
// if enough bytes are buffered. It returns nil, nil when nothing can be
// completed. On failure the frame's bytes are discarded from the stream so
// later frames stay aligned.
func (p *Port) completeFront() (*frame.Frame, error) {
	p.pendingIMutex.Lock()
	defer p.pendingIMutex.Unlock()
	p.istreamMutex.Lock()
	defer p.istreamMutex.Unlock()

	f := p.pendingIFrames.PeekFront()
	if f == nil || f.Size() > p.istream.Len() {
		return nil, nil
	}
	p.pendingIFrames.PopFront()

	if err := frame.Transfer(f, p.istream, f.Size()); err != nil {
		_ = p.istream.RemoveData(nil, f.Size())
		return f, err
	}
	return f, nil
}

// updateByteCounts reads the byte count of every frame the card has
// finished receiving and queues a pending frame for each.
func (p *Port) updateByteCounts(ctx context.Context) error {
	if p.IsStreaming() {
		return nil
	}

	p.countMutex.Lock()
	defer p.countMutex.Unlock()

	fifofc, err := p.regs.Get(ctx, register.BAR0, register.FIFOFC)
	if err != nil {
		return fmt.Errorf("read frame count: %w", err)
	}
	count := register.RxFrames(fifofc)
	if count == 0 {
		return nil
	}

	p.pendingIMutex.Lock()
	pending := p.pendingIFrames.Len()
	p.pendingIMutex.Unlock()

	if pending+count > MaxPendingFrames {
		pkg.LogWarn(pkg.ComponentInbound, "byte count buffer full",
			"port", p.name, "pending", pending, "reported", count)
		return nil
	}

	for i := 0; i < count; i++ {
		size, err := p.regs.Get(ctx, register.BAR0, register.BCFL)
		if err != nil {
			return fmt.Errorf("read byte count: %w", err)
		}
		if size == 0 {
			pkg.LogWarn(pkg.ComponentInbound, "ignoring empty byte count", "port", p.name)
			continue
		}

		f := frame.New(int(size))
		f.SetNumber(p.iframeNumber.Add(1))

		p.pendingIMutex.Lock()
		p.pendingIFrames.PushBack(f)
		p.pendingIMutex.Unlock()

		pkg.LogDebug(pkg.ComponentInbound, "byte count",
			"port", p.name, "frame", f.Number(), "size", size)
	}

	p.assemble()
	return nil
}

// byteCountLoop runs updateByteCounts whenever a chunk arrives and on every
// poll interval.
func (p *Port) byteCountLoop(ctx context.Context) {
	defer p.workers.Done()

	pkg.LogDebug(pkg.ComponentInbound, "byte count worker started", "port", p.name)
	defer pkg.LogDebug(pkg.ComponentInbound, "byte count worker stopped", "port", p.name)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.countKick:
		case <-ticker.C:
		}
		if err := p.updateByteCounts(ctx); err != nil && ctx.Err() == nil {
			pkg.LogWarn(pkg.ComponentInbound, "byte count update failed",
				"port", p.name, "error", err)
		}
	}
}

// ===========================================================================
// Reading
// ===========================================================================

// Read copies inbound data into buf without blocking.
//
// In streaming mode it returns up to len(buf) bytes from the stream, or 0
// if the stream is empty. In framed mode it returns whole frames: one, or
// as many as fit when rx-multiple is enabled. If no frame can be returned
// it fails with [pkg.ErrNoBufferSpace] and leaves the queue untouched.
func (p *Port) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if p.IsStreaming() {
		return p.streamRead(buf), nil
	}
	return p.frameRead(buf)
}

func (p *Port) streamRead(buf []byte) int {
	p.istreamMutex.Lock()
	defer p.istreamMutex.Unlock()

	n := min(len(buf), p.istream.Len())
	if n == 0 {
		return 0
	}
	if err := p.istream.RemoveData(buf, n); err != nil {
		pkg.LogError(pkg.ComponentInbound, "stream read failed", "port", p.name, "error", err)
		return 0
	}
	return n
}

func (p *Port) frameRead(buf []byte) (int, error) {
	p.settingsMutex.RLock()
	appendStatus := p.appendStatus
	appendTimestamp := p.appendTimestamp
	multiple := p.rxMultiple
	p.settingsMutex.RUnlock()

	// Bytes a frame loses or gains on its way to the caller.
	strip, extra := 0, 0
	if !appendStatus {
		strip = StatusLength
	}
	if appendTimestamp {
		extra = frame.TimestampSize
	}

	p.queuedIMutex.Lock()
	defer p.queuedIMutex.Unlock()

	n, frames := 0, 0
	for {
		maxFrame := len(buf) - n + strip - extra
		if maxFrame <= 0 {
			break
		}
		f := p.queuedIFrames.PopFrontIfCompleteAndFits(maxFrame)
		if f == nil {
			break
		}

		payload := max(f.Len()-strip, 0)
		n += copy(buf[n:], f.Bytes()[:payload])
		if appendTimestamp {
			n += copy(buf[n:], f.AppendTimestamp(nil))
		}
		f.Clear()
		frames++

		if !multiple {
			break
		}
	}

	if frames == 0 {
		return 0, pkg.ErrNoBufferSpace
	}
	return n, nil
}

// PurgeRx resets the card's receiver and discards every inbound frame and
// stream byte. If the reset command fails nothing is discarded.
func (p *Port) PurgeRx(ctx context.Context) error {
	p.countMutex.Lock()
	defer p.countMutex.Unlock()

	if err := p.executeCommand(ctx, register.CmdReceiveReset); err != nil {
		return fmt.Errorf("purge rx: %w", err)
	}

	p.assembleMutex.Lock()
	p.queuedIMutex.Lock()
	p.queuedIFrames.Clear()
	p.queuedIMutex.Unlock()
	p.pendingIMutex.Lock()
	p.pendingIFrames.Clear()
	p.istreamMutex.Lock()
	p.istream.Clear()
	p.istreamMutex.Unlock()
	p.pendingIMutex.Unlock()
	p.assembleMutex.Unlock()

	if d, ok := p.cfg.Inspector.(*RepeatDetector); ok {
		d.Reset()
	}

	pkg.LogInfo(pkg.ComponentInbound, "rx purged", "port", p.name)
	return nil
}
