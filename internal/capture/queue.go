package capture

import (
	"sync/atomic"
	"time"

	"github.com/wrenvoice/wren/pkg/audio"
)

// FrameQueue is the bounded handoff between the driver's producer callback
// and the decision loop. It is safe for exactly one producer and one
// consumer running concurrently.
//
// The producer path never blocks: when the queue is full the oldest pending
// frame is evicted to make room for the newest, so a decision loop that
// fell behind catches up on fresh audio instead of replaying stale frames.
type FrameQueue struct {
	ch      chan audio.Frame
	dropped atomic.Uint64
}

// NewFrameQueue returns a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameQueue{ch: make(chan audio.Frame, capacity)}
}

// Offer enqueues frame without blocking. It reports whether an older frame
// was evicted to make room.
func (q *FrameQueue) Offer(frame audio.Frame) (evicted bool) {
	for {
		select {
		case q.ch <- frame:
			return evicted
		default:
		}
		// Full: evict the oldest and retry. The single consumer may have
		// raced us to it, in which case the next send attempt succeeds.
		select {
		case <-q.ch:
			q.dropped.Add(1)
			evicted = true
		default:
		}
	}
}

// Poll dequeues one frame, waiting at most timeout. The second return is
// false when the timeout elapsed with no frame available.
func (q *FrameQueue) Poll(timeout time.Duration) (audio.Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-q.ch:
		return f, true
	case <-timer.C:
		return audio.Frame{}, false
	}
}

// Len returns the number of frames currently queued.
func (q *FrameQueue) Len() int {
	return len(q.ch)
}

// Dropped returns the total number of frames evicted on overflow.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}
