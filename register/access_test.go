package register

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ardnew/synccom/pkg"
)

// mockPipe records commands and replays queued responses.
type mockPipe struct {
	mutex     sync.Mutex
	commands  [][]byte
	responses [][]byte
	writeErr  error
	short     bool
}

var _ Pipe = (*mockPipe)(nil)

func (m *mockPipe) WriteCommand(_ context.Context, p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.commands = append(m.commands, append([]byte(nil), p...))
	if m.short {
		return len(p) - 1, nil
	}
	return len(p), nil
}

func (m *mockPipe) ReadResponse(_ context.Context, p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.responses) == 0 {
		return 0, pkg.ErrTransferTimeout
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return copy(p, r), nil
}

func TestEncodeGet(t *testing.T) {
	tests := []struct {
		name   string
		bar    BAR
		offset uint32
		want   [3]byte
	}{
		{"fifo", BAR0, FIFO, [3]byte{0x6b, 0x80, 0x00}},
		{"star", BAR0, STAR, [3]byte{0x6b, 0x80, 0x30}},
		{"dpllr", BAR0, DPLLR, [3]byte{0x6b, 0x80, 0xb0}},
		{"fcr", BAR2, FCR, [3]byte{0x6b, 0x00, 0x40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeGet(tt.bar, tt.offset); got != tt.want {
				t.Errorf("EncodeGet() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeSet(t *testing.T) {
	got := EncodeSet(BAR0, CMDR, 0x08020000)
	want := [7]byte{0x6a, 0x80, 0x28, 0x08, 0x02, 0x00, 0x00}
	if got != want {
		t.Errorf("EncodeSet() = % x, want % x", got, want)
	}

	got = EncodeSet(BAR2, FCR, 0x01020304)
	want = [7]byte{0x6a, 0x00, 0x40, 0x01, 0x02, 0x03, 0x04}
	if got != want {
		t.Errorf("EncodeSet() = % x, want % x", got, want)
	}
}

func TestBus_Get(t *testing.T) {
	pipe := &mockPipe{responses: [][]byte{{0x12, 0x34, 0x56, 0x78}}}
	bus := NewBus(pipe)

	v, err := bus.Get(context.Background(), BAR0, CCR0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("Get() = %#x, want 0x12345678", v)
	}
	if len(pipe.commands) != 1 || !bytes.Equal(pipe.commands[0], []byte{0x6b, 0x80, 0x38}) {
		t.Errorf("commands = % x", pipe.commands)
	}
}

func TestBus_GetShortResponse(t *testing.T) {
	pipe := &mockPipe{responses: [][]byte{{0x12, 0x34}}}
	bus := NewBus(pipe)

	if _, err := bus.Get(context.Background(), BAR0, CCR0); !errors.Is(err, pkg.ErrShortTransfer) {
		t.Errorf("Get() error = %v, want %v", err, pkg.ErrShortTransfer)
	}
}

func TestBus_Set(t *testing.T) {
	pipe := &mockPipe{}
	bus := NewBus(pipe)

	if err := bus.Set(context.Background(), BAR0, FIFOT, 0x08001000); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	want := []byte{0x6a, 0x80, 0x10, 0x08, 0x00, 0x10, 0x00}
	if len(pipe.commands) != 1 || !bytes.Equal(pipe.commands[0], want) {
		t.Errorf("commands = % x, want % x", pipe.commands, want)
	}
}

func TestBus_SetErrors(t *testing.T) {
	tests := []struct {
		name string
		pipe *mockPipe
		want error
	}{
		{"stall", &mockPipe{writeErr: pkg.ErrStall}, pkg.ErrStall},
		{"short", &mockPipe{short: true}, pkg.ErrShortTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBus(tt.pipe).Set(context.Background(), BAR0, CCR1, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("Set() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBus_Serialised(t *testing.T) {
	const n = 50
	pipe := &mockPipe{}
	for i := 0; i < n; i++ {
		pipe.responses = append(pipe.responses, []byte{0, 0, 0, byte(i)})
	}
	bus := NewBus(pipe)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := bus.Get(context.Background(), BAR0, STAR); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(pipe.commands) != n {
		t.Errorf("commands = %d, want %d", len(pipe.commands), n)
	}
}
