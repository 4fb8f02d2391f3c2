package frame

// Stream is the unbounded accumulator of raw inbound bytes.
type Stream struct {
	buffer
}

// NewStream returns an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

// IsEmpty reports whether the stream holds no bytes.
func (s *Stream) IsEmpty() bool { return s.length == 0 }
