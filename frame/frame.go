package frame

import (
	"encoding/binary"
	"time"
)

// TimestampSize is the number of bytes [Frame.AppendTimestamp] writes.
const TimestampSize = 16

// Frame is one discrete unit of framed-mode payload.
type Frame struct {
	buffer

	// size is the total expected length, fixed at creation.
	size int

	number    uint64
	timestamp time.Time
}

// New creates an empty frame expecting size bytes. A size of 0 means the
// length is not known yet.
func New(size int) *Frame {
	return &Frame{size: size}
}

// Size returns the expected total length of the frame.
func (f *Frame) Size() int { return f.size }

// Number returns the frame's sequence number.
func (f *Frame) Number() uint64 { return f.number }

// SetNumber assigns the frame's sequence number.
func (f *Frame) SetNumber(n uint64) { f.number = n }

// IsComplete reports whether every expected byte is present.
func (f *Frame) IsComplete() bool { return f.length == f.size }

// Timestamp returns the time the frame was completed.
func (f *Frame) Timestamp() time.Time { return f.timestamp }

// Stamp records t as the frame's completion time.
func (f *Frame) Stamp(t time.Time) { f.timestamp = t }

// AppendTimestamp appends the completion time to p as little-endian
// seconds followed by microseconds, each 8 bytes wide.
func (f *Frame) AppendTimestamp(p []byte) []byte {
	p = binary.LittleEndian.AppendUint64(p, uint64(f.timestamp.Unix()))
	return binary.LittleEndian.AppendUint64(p, uint64(f.timestamp.Nanosecond()/1000))
}
