package register

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/synccom/pkg"
)

// Card bulk endpoints.
const (
	EndpointCommandOut uint8 = 0x01 // register commands
	EndpointCommandIn  uint8 = 0x81 // register read responses
	EndpointDataIn     uint8 = 0x82 // received data chunks
	EndpointDataOut    uint8 = 0x06 // data to transmit
)

// Inbound chunk layout.
const (
	// MaxChunkSize is the largest data chunk the card sends in one
	// transfer.
	MaxChunkSize = 512

	// ChunkHeaderSize is the big-endian payload length prefix.
	ChunkHeaderSize = 2
)

// DecodeChunk decodes one inbound data transfer in place and returns its
// payload. The first two bytes hold the payload length, big-endian; the
// rest of the transfer arrives with each 16-bit pair byte-swapped.
func DecodeChunk(raw []byte) ([]byte, error) {
	if len(raw) < ChunkHeaderSize {
		return nil, fmt.Errorf("%w: chunk of %d bytes", pkg.ErrShortTransfer, len(raw))
	}
	n := int(binary.BigEndian.Uint16(raw))
	end := ChunkHeaderSize + n
	if end > len(raw) {
		return nil, fmt.Errorf("%w: chunk declares %d bytes, carries %d",
			pkg.ErrProtocol, n, len(raw)-ChunkHeaderSize)
	}
	for i := ChunkHeaderSize; i+1 < len(raw) && i < end; i += 2 {
		raw[i], raw[i+1] = raw[i+1], raw[i]
	}
	return raw[ChunkHeaderSize:end], nil
}

// EncodeChunk appends the wire form of payload to dst. Odd-length
// payloads are padded with one zero byte so every pair can be swapped.
func EncodeChunk(dst, payload []byte) []byte {
	start := len(dst)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	if len(payload)%2 != 0 {
		dst = append(dst, 0)
	}
	body := dst[start+ChunkHeaderSize:]
	for i := 0; i+1 < len(body); i += 2 {
		body[i], body[i+1] = body[i+1], body[i]
	}
	return dst
}

// Command is a decoded register command.
type Command struct {
	Write   bool
	Address Address
	Value   uint32 // writes only
}

// DecodeCommand decodes the register command at the start of p and
// returns it with the number of bytes it occupied.
func DecodeCommand(p []byte) (Command, int, error) {
	if len(p) < getCommandSize {
		return Command{}, 0, fmt.Errorf("%w: command of %d bytes", pkg.ErrShortTransfer, len(p))
	}
	addr := decodeWireAddress(binary.BigEndian.Uint16(p[1:]))
	switch p[0] {
	case opGet:
		return Command{Address: addr}, getCommandSize, nil
	case opSet:
		if len(p) < setCommandSize {
			return Command{}, 0, fmt.Errorf("%w: write command of %d bytes", pkg.ErrShortTransfer, len(p))
		}
		v := binary.BigEndian.Uint32(p[3:])
		return Command{Write: true, Address: addr, Value: v}, setCommandSize, nil
	}
	return Command{}, 0, fmt.Errorf("%w: opcode %#02x", pkg.ErrProtocol, p[0])
}

// decodeWireAddress inverts wireAddress.
func decodeWireAddress(w uint16) Address {
	if w&bar0WireFlag != 0 {
		return Address{BAR: BAR0, Offset: uint32(w&^bar0WireFlag) >> 1}
	}
	return Address{BAR: BAR2, Offset: uint32(w)}
}
