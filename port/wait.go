package port

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/synccom/pkg"
)

// notifier wakes every goroutine waiting on it. Waiters take the channel
// before checking their condition so a broadcast between the check and the
// wait is never lost.
type notifier struct {
	mutex sync.Mutex
	ch    chan struct{}
}

// wait returns a channel that is closed by the next broadcast.
func (n *notifier) wait() <-chan struct{} {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.ch == nil {
		n.ch = make(chan struct{})
	}
	return n.ch
}

// broadcast wakes every current waiter.
func (n *notifier) broadcast() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.ch != nil {
		close(n.ch)
		n.ch = nil
	}
}

// interrupted wraps a context error so callers can match either
// [pkg.ErrInterrupted] or the context's own error.
func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", pkg.ErrInterrupted, ctx.Err())
}

// PollState reports which operations would proceed without blocking.
type PollState struct {
	Readable bool
	Writable bool
}

// Poll returns the port's current readiness.
func (p *Port) Poll() PollState {
	return PollState{
		Readable: p.HasIncomingData(),
		Writable: p.OutputMemoryUsage() < p.MemoryCap().Output,
	}
}

// WaitReadable blocks until the port has incoming data, ctx is done or the
// port is closed.
func (p *Port) WaitReadable(ctx context.Context) error {
	for {
		ch := p.input.wait()
		if p.IsClosed() {
			return pkg.ErrClosed
		}
		if p.HasIncomingData() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return interrupted(ctx)
		}
	}
}

// WaitWritable blocks until n more bytes fit under the output cap, ctx is
// done or the port is closed.
func (p *Port) WaitWritable(ctx context.Context, n int) error {
	for {
		ch := p.output.wait()
		if p.IsClosed() {
			return pkg.ErrClosed
		}
		if p.OutputMemoryUsage()+n <= p.MemoryCap().Output {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return interrupted(ctx)
		}
	}
}

// ReadContext blocks until data is available and then reads it into buf.
// A cancelled ctx returns [pkg.ErrInterrupted] without consuming data.
func (p *Port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if err := p.WaitReadable(ctx); err != nil {
		return 0, err
	}
	return p.Read(buf)
}

// WriteContext blocks until data fits under the output cap and then queues
// it. A cancelled ctx returns [pkg.ErrInterrupted] without queuing data.
func (p *Port) WriteContext(ctx context.Context, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) > p.MemoryCap().Output {
		return 0, pkg.ErrNoBufferSpace
	}
	if err := p.WaitWritable(ctx, len(data)); err != nil {
		return 0, err
	}
	return p.Write(data)
}
