package port

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ardnew/synccom/pkg"
)

// File is an open handle on a [Port] with file semantics: reads and writes
// block until they can proceed unless the handle is non-blocking, and one
// reader and one writer run at a time.
type File struct {
	port     *Port
	nonblock atomic.Bool

	readMutex  sync.Mutex
	writeMutex sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// Open returns a new handle on p. Blocked calls on the handle return
// [pkg.ErrInterrupted] when ctx is cancelled or the handle is closed.
func (p *Port) Open(ctx context.Context, nonblock bool) (*File, error) {
	if p.IsClosed() {
		return nil, pkg.ErrClosed
	}
	f := &File{port: p}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.nonblock.Store(nonblock)
	return f, nil
}

// Port returns the port the handle refers to.
func (f *File) Port() *Port { return f.port }

// SetNonblock switches the handle between blocking and non-blocking mode.
func (f *File) SetNonblock(v bool) { f.nonblock.Store(v) }

// Nonblock reports whether the handle is non-blocking.
func (f *File) Nonblock() bool { return f.nonblock.Load() }

// Read implements [io.Reader]. A non-blocking handle with nothing to read
// fails with [pkg.ErrWouldBlock].
func (f *File) Read(b []byte) (int, error) {
	return f.ReadContext(f.ctx, b)
}

// ReadContext is Read with an additional cancellation context.
func (f *File) ReadContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if err := f.ctx.Err(); err != nil {
		return 0, pkg.ErrClosed
	}

	f.readMutex.Lock()
	defer f.readMutex.Unlock()

	if f.Nonblock() {
		if !f.port.HasIncomingData() {
			return 0, pkg.ErrWouldBlock
		}
		return f.port.Read(b)
	}

	ctx, stop := f.merge(ctx)
	defer stop()
	return f.port.ReadContext(ctx, b)
}

// Write implements [io.Writer]. The whole of b is queued as one frame or
// nothing is. A non-blocking handle without room fails with
// [pkg.ErrWouldBlock].
func (f *File) Write(b []byte) (int, error) {
	return f.WriteContext(f.ctx, b)
}

// WriteContext is Write with an additional cancellation context.
func (f *File) WriteContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if err := f.ctx.Err(); err != nil {
		return 0, pkg.ErrClosed
	}

	f.writeMutex.Lock()
	defer f.writeMutex.Unlock()

	if len(b) > f.port.MemoryCap().Output {
		return 0, pkg.ErrNoBufferSpace
	}
	if f.Nonblock() {
		if f.port.OutputMemoryUsage()+len(b) > f.port.MemoryCap().Output {
			return 0, pkg.ErrWouldBlock
		}
		return f.port.Write(b)
	}

	ctx, stop := f.merge(ctx)
	defer stop()
	return f.port.WriteContext(ctx, b)
}

// Poll returns the port's readiness.
func (f *File) Poll() PollState {
	return f.port.Poll()
}

// Close interrupts blocked calls on the handle. The port stays open.
func (f *File) Close() error {
	f.cancel()
	return nil
}

// merge returns a context cancelled when either ctx or the handle is done.
func (f *File) merge(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == f.ctx {
		return ctx, func() {}
	}
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
