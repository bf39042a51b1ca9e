package input

import "github.com/nethercore-systems/nethercore-sub005/internal/protocol"

// Buffer collects one local player's recent input frames, so that the
// last few frames can be resent alongside the newest one. The host
// commands in this repository do not use it: they send only the newest
// frame on each tick.
type Buffer struct {
	frames []protocol.InputFrame
	cap    int
}

// NewBuffer creates an input buffer retaining up to capacity frames.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{frames: make([]protocol.InputFrame, 0, capacity), cap: capacity}
}

// Push records a newly authored frame, evicting the oldest if full.
func (b *Buffer) Push(frame protocol.InputFrame) {
	if len(b.frames) >= b.cap {
		b.frames = b.frames[1:]
	}
	b.frames = append(b.frames, frame)
}

// Recent returns the n most recently pushed frames, oldest first.
func (b *Buffer) Recent(n int) []protocol.InputFrame {
	if n > len(b.frames) {
		n = len(b.frames)
	}
	return b.frames[len(b.frames)-n:]
}

// Latest returns the most recently pushed frame and true, or the zero
// value and false if nothing has been pushed yet.
func (b *Buffer) Latest() (protocol.InputFrame, bool) {
	if len(b.frames) == 0 {
		return protocol.InputFrame{}, false
	}
	return b.frames[len(b.frames)-1], true
}
