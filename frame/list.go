package frame

import "iter"

// List is an ordered queue of frames that tracks the total number of bytes
// held by its members.
type List struct {
	frames []*Frame
	usage  int
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// PushBack appends f.
func (l *List) PushBack(f *Frame) {
	l.frames = append(l.frames, f)
	l.usage += f.Len()
}

// PopFront removes and returns the oldest frame, or nil if the list is empty.
func (l *List) PopFront() *Frame {
	if len(l.frames) == 0 {
		return nil
	}
	f := l.frames[0]
	l.frames[0] = nil
	l.frames = l.frames[1:]
	l.usage -= f.Len()
	if len(l.frames) == 0 {
		l.frames = nil
	}
	return f
}

// PopFrontIfCompleteAndFits removes and returns the oldest frame only if it
// is fully assembled and holds no more than maxLen bytes. Otherwise the list
// is left untouched and nil is returned.
func (l *List) PopFrontIfCompleteAndFits(maxLen int) *Frame {
	f := l.PeekFront()
	if f == nil || !f.IsComplete() || f.Len() > maxLen {
		return nil
	}
	return l.PopFront()
}

// PeekFront returns the oldest frame without removing it.
func (l *List) PeekFront() *Frame {
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[0]
}

// PeekBack returns the newest frame without removing it.
func (l *List) PeekBack() *Frame {
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

// IsEmpty reports whether the list holds no frames.
func (l *List) IsEmpty() bool { return len(l.frames) == 0 }

// Len returns the number of frames in the list.
func (l *List) Len() int { return len(l.frames) }

// MemoryUsage returns the sum of the member frames' lengths.
func (l *List) MemoryUsage() int { return l.usage }

// Clear drops every frame.
func (l *List) Clear() {
	for _, f := range l.frames {
		f.Clear()
	}
	l.frames = nil
	l.usage = 0
}

// All iterates over the frames from oldest to newest.
func (l *List) All() iter.Seq[*Frame] {
	return func(yield func(*Frame) bool) {
		for _, f := range l.frames {
			if !yield(f) {
				return
			}
		}
	}
}
