package capture_test

import (
	"sync"
	"testing"
	"time"

	"github.com/wrenvoice/wren/internal/capture"
	"github.com/wrenvoice/wren/pkg/audio"
)

func tsFrame(ts time.Duration) audio.Frame {
	return audio.Frame{Samples: make([]float32, 320), SampleRate: 16000, Timestamp: ts}
}

func TestFrameQueueOrdering(t *testing.T) {
	q := capture.NewFrameQueue(8)
	for i := 0; i < 5; i++ {
		if evicted := q.Offer(tsFrame(time.Duration(i))); evicted {
			t.Fatalf("Offer(%d) evicted below capacity", i)
		}
	}
	for i := 0; i < 5; i++ {
		f, ok := q.Poll(time.Millisecond)
		if !ok {
			t.Fatalf("Poll(%d) = empty, want frame", i)
		}
		if f.Timestamp != time.Duration(i) {
			t.Errorf("Poll(%d) timestamp = %d, want %d", i, f.Timestamp, i)
		}
	}
}

func TestFrameQueueOverflowDropsOldest(t *testing.T) {
	q := capture.NewFrameQueue(3)
	for i := 0; i < 7; i++ {
		q.Offer(tsFrame(time.Duration(i)))
	}
	if got := q.Dropped(); got != 4 {
		t.Errorf("Dropped() = %d, want 4", got)
	}
	// The three newest frames survive, oldest-first.
	want := []time.Duration{4, 5, 6}
	for i, w := range want {
		f, ok := q.Poll(time.Millisecond)
		if !ok {
			t.Fatalf("Poll(%d) = empty, want frame", i)
		}
		if f.Timestamp != w {
			t.Errorf("Poll(%d) timestamp = %d, want %d", i, f.Timestamp, w)
		}
	}
}

func TestFrameQueuePollTimeout(t *testing.T) {
	q := capture.NewFrameQueue(1)
	start := time.Now()
	_, ok := q.Poll(10 * time.Millisecond)
	if ok {
		t.Fatal("Poll on empty queue = frame, want timeout")
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Poll returned after %v, want >= 10ms", elapsed)
	}
}

func TestFrameQueueConcurrentProducerConsumer(t *testing.T) {
	const total = 500
	q := capture.NewFrameQueue(16)

	var consumed int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			_, ok := q.Poll(50 * time.Millisecond)
			if !ok {
				return
			}
			consumed++
		}
	}()

	for i := 0; i < total; i++ {
		q.Offer(tsFrame(time.Duration(i)))
	}
	wg.Wait()

	if got := consumed + int(q.Dropped()) + q.Len(); got != total {
		t.Errorf("consumed %d + dropped %d + queued %d = %d, want %d",
			consumed, q.Dropped(), q.Len(), got, total)
	}
}
