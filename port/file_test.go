package port

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ardnew/synccom/pkg"
)

var _ io.ReadWriteCloser = (*File)(nil)

func openFile(t *testing.T, p *Port, nonblock bool) *File {
	t.Helper()
	f, err := p.Open(context.Background(), nonblock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFile_NonblockingRead(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	setStreaming(t, p)
	f := openFile(t, p, true)

	if _, err := f.Read(make([]byte, 4)); !errors.Is(err, pkg.ErrWouldBlock) {
		t.Fatalf("Read() error = %v, want %v", err, pkg.ErrWouldBlock)
	}

	p.Ingest([]byte("abc"))
	buf := make([]byte, 4)
	n, err := f.Read(buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Errorf("Read() = %q, %v", buf[:n], err)
	}
}

func TestFile_ZeroLength(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	f := openFile(t, p, false)

	if n, err := f.Read(nil); n != 0 || err != nil {
		t.Errorf("Read(nil) = %d, %v", n, err)
	}
	if n, err := f.Write(nil); n != 0 || err != nil {
		t.Errorf("Write(nil) = %d, %v", n, err)
	}
}

func TestFile_BlockingReadWakes(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	setStreaming(t, p)
	f := openFile(t, p, false)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	buf := make([]byte, 8)
	go func() {
		n, err := f.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		t.Fatalf("Read() returned early: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	p.Ingest([]byte("wake"))
	select {
	case r := <-done:
		if r.err != nil || string(buf[:r.n]) != "wake" {
			t.Errorf("Read() = %q, %v", buf[:r.n], r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not wake")
	}
}

func TestFile_ReadInterrupted(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	f := openFile(t, p, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.ReadContext(ctx, make([]byte, 4))
	if !errors.Is(err, pkg.ErrInterrupted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadContext() error = %v, want interrupted deadline", err)
	}
}

func TestFile_CloseInterruptsRead(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	f := openFile(t, p, false)

	done := make(chan error, 1)
	go func() {
		_, err := f.Read(make([]byte, 4))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_ = f.Close()

	select {
	case err := <-done:
		if !errors.Is(err, pkg.ErrInterrupted) {
			t.Errorf("Read() error = %v, want %v", err, pkg.ErrInterrupted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not interrupt Read()")
	}

	if _, err := f.Read(make([]byte, 4)); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Read() after Close error = %v, want %v", err, pkg.ErrClosed)
	}
}

func TestFile_PortCloseWakesReader(t *testing.T) {
	p, _, _ := newTestPort(t, nil)
	f := openFile(t, p, false)

	done := make(chan error, 1)
	go func() {
		_, err := f.Read(make([]byte, 4))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_ = p.Close()

	select {
	case err := <-done:
		if !errors.Is(err, pkg.ErrClosed) {
			t.Errorf("Read() error = %v, want %v", err, pkg.ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("port Close() did not wake Read()")
	}
	if _, err := p.Open(context.Background(), false); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Open() on closed port error = %v", err)
	}
}

func TestFile_WriteBackpressure(t *testing.T) {
	p, _, tx := newTestPort(t, func(c *Config) { c.MemoryCap.Output = 10 })
	f := openFile(t, p, false)

	if _, err := f.Write(make([]byte, 11)); !errors.Is(err, pkg.ErrNoBufferSpace) {
		t.Fatalf("Write() error = %v, want %v", err, pkg.ErrNoBufferSpace)
	}
	if _, err := f.Write(make([]byte, 8)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	nb := openFile(t, p, true)
	if _, err := nb.Write(make([]byte, 4)); !errors.Is(err, pkg.ErrWouldBlock) {
		t.Errorf("non-blocking Write() error = %v, want %v", err, pkg.ErrWouldBlock)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.Write(make([]byte, 4))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Write() returned before space was freed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Write() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Write() did not wake")
	}
	eventually(t, func() bool { return len(tx.bytes()) == 12 })
}

func TestFile_WriteInterrupted(t *testing.T) {
	p, _, _ := newTestPort(t, func(c *Config) { c.MemoryCap.Output = 4 })
	f := openFile(t, p, false)
	_, _ = f.Write(make([]byte, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.WriteContext(ctx, make([]byte, 4)); !errors.Is(err, context.Canceled) {
		t.Errorf("WriteContext() error = %v, want cancelled", err)
	}
	if got := p.OutputMemoryUsage(); got != 4 {
		t.Errorf("OutputMemoryUsage() = %d, want 4", got)
	}
}

func TestPoll(t *testing.T) {
	p, _, _ := newTestPort(t, func(c *Config) { c.MemoryCap.Output = 4 })
	setStreaming(t, p)
	f := openFile(t, p, false)

	if got := f.Poll(); got.Readable || !got.Writable {
		t.Errorf("Poll() = %+v, want writable only", got)
	}

	p.Ingest([]byte{1})
	_, _ = p.Write(make([]byte, 4))
	if got := f.Poll(); !got.Readable || got.Writable {
		t.Errorf("Poll() = %+v, want readable only", got)
	}
}
