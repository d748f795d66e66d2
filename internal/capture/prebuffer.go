package capture

import "github.com/wrenvoice/wren/pkg/audio"

// PreBuffer is a bounded ring of the most recent frames, kept while the
// detector is not yet recording. When an utterance start is confirmed, the
// buffered frames are prepended to the recording so the onset is not
// clipped. The oldest frame is overwritten when the ring is full; the ring
// never grows.
type PreBuffer struct {
	frames []audio.Frame
	head   int
	size   int
}

// NewPreBuffer returns a ring holding at most capacity frames. A capacity
// of zero disables pre-roll: Snapshot always returns nil.
func NewPreBuffer(capacity int) *PreBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &PreBuffer{frames: make([]audio.Frame, capacity)}
}

// Push appends frame, overwriting the oldest entry when full.
func (b *PreBuffer) Push(frame audio.Frame) {
	if len(b.frames) == 0 {
		return
	}
	b.frames[b.head] = frame
	b.head = (b.head + 1) % len(b.frames)
	if b.size < len(b.frames) {
		b.size++
	}
}

// Snapshot returns the buffered frames oldest-first. The returned slice is
// freshly allocated; the ring is unchanged.
func (b *PreBuffer) Snapshot() []audio.Frame {
	if b.size == 0 {
		return nil
	}
	out := make([]audio.Frame, 0, b.size)
	start := (b.head - b.size + len(b.frames)) % len(b.frames)
	for i := 0; i < b.size; i++ {
		out = append(out, b.frames[(start+i)%len(b.frames)])
	}
	return out
}

// Len returns the number of frames currently buffered.
func (b *PreBuffer) Len() int {
	return b.size
}

// Reset empties the ring without releasing its storage.
func (b *PreBuffer) Reset() {
	b.head = 0
	b.size = 0
}
