package port

import "sync/atomic"

// counters accumulates pipeline statistics.
type counters struct {
	framesIn      atomic.Uint64
	bytesIn       atomic.Uint64
	framesOut     atomic.Uint64
	bytesOut      atomic.Uint64
	droppedChunks atomic.Uint64
	droppedBytes  atomic.Uint64
	suspectChunks atomic.Uint64
}

// Stats is a point-in-time view of a port's pipeline.
type Stats struct {
	FramesIn      uint64 `yaml:"frames_in"`
	BytesIn       uint64 `yaml:"bytes_in"`
	FramesOut     uint64 `yaml:"frames_out"`
	BytesOut      uint64 `yaml:"bytes_out"`
	DroppedChunks uint64 `yaml:"dropped_chunks"`
	DroppedBytes  uint64 `yaml:"dropped_bytes"`
	SuspectChunks uint64 `yaml:"suspect_chunks"`

	InputUsage    int `yaml:"input_usage"`
	OutputUsage   int `yaml:"output_usage"`
	StreamLength  int `yaml:"stream_length"`
	PendingFrames int `yaml:"pending_frames"`
	QueuedIFrames int `yaml:"queued_iframes"`
	QueuedOFrames int `yaml:"queued_oframes"`

	MemoryCap MemoryCap `yaml:"memory_cap"`
	Streaming bool      `yaml:"streaming"`
}

// Stats returns the port's counters and current buffer occupancy.
func (p *Port) Stats() Stats {
	s := Stats{
		FramesIn:      p.stats.framesIn.Load(),
		BytesIn:       p.stats.bytesIn.Load(),
		FramesOut:     p.stats.framesOut.Load(),
		BytesOut:      p.stats.bytesOut.Load(),
		DroppedChunks: p.stats.droppedChunks.Load(),
		DroppedBytes:  p.stats.droppedBytes.Load(),
		SuspectChunks: p.stats.suspectChunks.Load(),
		InputUsage:    p.InputMemoryUsage(),
		OutputUsage:   p.OutputMemoryUsage(),
		MemoryCap:     p.MemoryCap(),
		Streaming:     p.IsStreaming(),
	}

	p.queuedIMutex.Lock()
	s.QueuedIFrames = p.queuedIFrames.Len()
	p.queuedIMutex.Unlock()

	p.pendingIMutex.Lock()
	s.PendingFrames = p.pendingIFrames.Len()
	p.pendingIMutex.Unlock()

	p.istreamMutex.Lock()
	s.StreamLength = p.istream.Len()
	p.istreamMutex.Unlock()

	p.queuedOMutex.Lock()
	s.QueuedOFrames = p.queuedOFrames.Len()
	p.queuedOMutex.Unlock()

	return s
}
