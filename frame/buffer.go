package frame

import (
	"io"

	"github.com/ardnew/synccom/pkg"
)

// MaxBufferSize is the largest buffer a Frame or Stream will allocate.
// Requests beyond it fail with [pkg.ErrNoMemory] instead of exhausting the
// process heap.
const MaxBufferSize = 1 << 28

// Buffer is the behaviour shared by [Frame] and [Stream].
type Buffer interface {
	// Len returns the number of valid bytes.
	Len() int

	// BufferSize returns the allocated size of the buffer.
	BufferSize() int

	// Bytes returns the valid bytes. The slice aliases internal storage
	// and is invalidated by the next mutation.
	Bytes() []byte

	// AddData appends p.
	AddData(p []byte) error

	// RemoveData moves the first n bytes into dst, or discards them when
	// dst is nil.
	RemoveData(dst []byte, n int) error
}

// buffer is a growable byte container. data[:length] holds valid bytes and
// len(data) is the allocated buffer size.
type buffer struct {
	data   []byte
	length int
}

// Len returns the number of valid bytes.
func (b *buffer) Len() int { return b.length }

// BufferSize returns the allocated size of the buffer.
func (b *buffer) BufferSize() int { return len(b.data) }

// Bytes returns the valid bytes without copying.
func (b *buffer) Bytes() []byte { return b.data[:b.length] }

// Resize reallocates the buffer to exactly size bytes. Shrinking below the
// current length truncates the valid data to the new size.
func (b *buffer) Resize(size int) error {
	if size < 0 || size > MaxBufferSize {
		return pkg.ErrNoMemory
	}
	if size == len(b.data) {
		return nil
	}
	if size == 0 {
		b.Clear()
		return nil
	}

	data := make([]byte, size)
	b.length = copy(data, b.data[:b.length])
	b.data = data
	return nil
}

// reserve makes room for n more bytes, growing to an exact fit.
func (b *buffer) reserve(n int) error {
	need := b.length + n
	if need <= len(b.data) {
		return nil
	}
	return b.Resize(need)
}

// AddData appends p, growing the buffer if needed. On failure the buffer is
// left unchanged.
func (b *buffer) AddData(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := b.reserve(len(p)); err != nil {
		return err
	}
	b.length += copy(b.data[b.length:], p)
	return nil
}

// AddDataFrom appends exactly n bytes read from r. If r cannot supply all n
// bytes the valid data is left unchanged and [pkg.ErrCopyFault] is returned.
func (b *buffer) AddDataFrom(r io.Reader, n int) error {
	if n < 0 {
		return pkg.ErrInvalidParameter
	}
	if n == 0 {
		return nil
	}
	if err := b.reserve(n); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, b.data[b.length:b.length+n]); err != nil {
		return pkg.ErrCopyFault
	}
	b.length += n
	return nil
}

// RemoveData copies the first n bytes into dst, or discards them when dst
// is nil, then compacts the remaining bytes to the front of the buffer.
func (b *buffer) RemoveData(dst []byte, n int) error {
	if n < 0 {
		return pkg.ErrInvalidParameter
	}
	if n == 0 {
		return nil
	}
	if b.length == 0 {
		pkg.LogWarn(pkg.ComponentFrame, "remove from empty buffer", "requested", n)
		return nil
	}
	if n > b.length {
		return pkg.ErrUnderflow
	}
	if dst != nil {
		if len(dst) < n {
			return pkg.ErrCopyFault
		}
		copy(dst, b.data[:n])
	}
	b.length = copy(b.data, b.data[n:b.length])
	return nil
}

// Clear releases the buffer.
func (b *buffer) Clear() {
	b.data = nil
	b.length = 0
}

// Transfer moves the first n bytes of src to the end of dst. Either the
// whole move happens or neither buffer changes.
func Transfer(dst, src Buffer, n int) error {
	if n < 0 {
		return pkg.ErrInvalidParameter
	}
	if n > src.Len() {
		return pkg.ErrUnderflow
	}
	if err := dst.AddData(src.Bytes()[:n]); err != nil {
		return err
	}
	return src.RemoveData(nil, n)
}
