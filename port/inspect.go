package port

import "sync"

// ChunkInspector examines inbound chunks before they are admitted. It
// reports whether a chunk looks corrupted; suspect chunks are counted and
// logged but still admitted.
type ChunkInspector interface {
	Inspect(chunk []byte) bool
}

// RepeatDetector flags chunks whose first two bytes repeat the last two
// bytes of the previous chunk, a pattern produced by a known firmware
// fault.
type RepeatDetector struct {
	mutex sync.Mutex
	tail  [2]byte
	valid bool
}

// NewRepeatDetector returns a detector with no history.
func NewRepeatDetector() *RepeatDetector {
	return &RepeatDetector{}
}

// Inspect implements [ChunkInspector].
func (d *RepeatDetector) Inspect(chunk []byte) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	suspect := d.valid && len(chunk) >= 2 &&
		chunk[0] == d.tail[0] && chunk[1] == d.tail[1]

	if len(chunk) >= 2 {
		d.tail = [2]byte{chunk[len(chunk)-2], chunk[len(chunk)-1]}
		d.valid = true
	} else if len(chunk) == 1 {
		d.tail = [2]byte{d.tail[1], chunk[0]}
	}
	return suspect
}

// Reset forgets the previous chunk.
func (d *RepeatDetector) Reset() {
	d.mutex.Lock()
	d.valid = false
	d.mutex.Unlock()
}
