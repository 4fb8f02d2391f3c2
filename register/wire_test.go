package register

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardnew/synccom/pkg"
)

func TestDecodeChunk(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []byte
		err  error
	}{
		{"even", []byte{0x00, 0x04, 'b', 'a', 'd', 'c'}, []byte("abcd"), nil},
		{"odd with pad", []byte{0x00, 0x03, 'b', 'a', 0x00, 'c'}, []byte("abc"), nil},
		{"trailing bytes", []byte{0x00, 0x02, 'b', 'a', 0xff, 0xff}, []byte("ab"), nil},
		{"empty", []byte{0x00, 0x00}, []byte{}, nil},
		{"short", []byte{0x00}, nil, pkg.ErrShortTransfer},
		{"overlong", []byte{0x00, 0x08, 'b', 'a'}, nil, pkg.ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeChunk(tt.raw)
			if !errors.Is(err, tt.err) {
				t.Fatalf("DecodeChunk() error = %v, want %v", err, tt.err)
			}
			if tt.err == nil && !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeChunk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeChunk(t *testing.T) {
	for _, payload := range [][]byte{nil, []byte("a"), []byte("abcd"), bytes.Repeat([]byte{1, 2, 3}, 100)} {
		raw := EncodeChunk(nil, payload)
		if len(raw)%2 != 0 {
			t.Errorf("EncodeChunk(%d bytes) has odd length %d", len(payload), len(raw))
		}
		got, err := DecodeChunk(raw)
		if err != nil {
			t.Fatalf("DecodeChunk() error = %v", err)
		}
		if !bytes.Equal(got, payload) && len(payload) > 0 {
			t.Errorf("round trip of %d bytes = %v", len(payload), got)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	get := EncodeGet(BAR0, CCR0)
	set := EncodeSet(BAR2, FCR, 0x01020304)

	cmd, n, err := DecodeCommand(get[:])
	if err != nil || n != 3 || cmd.Write || cmd.Address != (Address{BAR0, CCR0}) {
		t.Errorf("DecodeCommand(get) = %+v, %d, %v", cmd, n, err)
	}

	cmd, n, err = DecodeCommand(set[:])
	if err != nil || n != 7 || !cmd.Write || cmd.Address != (Address{BAR2, FCR}) || cmd.Value != 0x01020304 {
		t.Errorf("DecodeCommand(set) = %+v, %d, %v", cmd, n, err)
	}

	if _, _, err := DecodeCommand([]byte{0x6a, 0x80, 0x38}); !errors.Is(err, pkg.ErrShortTransfer) {
		t.Errorf("truncated write error = %v", err)
	}
	if _, _, err := DecodeCommand([]byte{0x00, 0x80, 0x38}); !errors.Is(err, pkg.ErrProtocol) {
		t.Errorf("bad opcode error = %v", err)
	}
}

func TestWireAddressRoundTrip(t *testing.T) {
	for _, a := range []Address{{BAR0, FIFO}, {BAR0, CMDR}, {BAR0, DPLLR}, {BAR2, FCR}} {
		if got := decodeWireAddress(wireAddress(a.BAR, a.Offset)); got != a {
			t.Errorf("decodeWireAddress(wireAddress(%+v)) = %+v", a, got)
		}
	}
}
