package capture_test

import (
	"testing"
	"time"

	"github.com/wrenvoice/wren/internal/capture"
)

func TestPreBufferSnapshotOrder(t *testing.T) {
	b := capture.NewPreBuffer(4)
	for i := 0; i < 3; i++ {
		b.Push(tsFrame(time.Duration(i)))
	}
	got := b.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(got))
	}
	for i, f := range got {
		if f.Timestamp != time.Duration(i) {
			t.Errorf("Snapshot()[%d] timestamp = %d, want %d", i, f.Timestamp, i)
		}
	}
}

func TestPreBufferOverwritesOldest(t *testing.T) {
	b := capture.NewPreBuffer(3)
	for i := 0; i < 7; i++ {
		b.Push(tsFrame(time.Duration(i)))
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	want := []time.Duration{4, 5, 6}
	for i, f := range b.Snapshot() {
		if f.Timestamp != want[i] {
			t.Errorf("Snapshot()[%d] timestamp = %d, want %d", i, f.Timestamp, want[i])
		}
	}
}

func TestPreBufferZeroCapacity(t *testing.T) {
	b := capture.NewPreBuffer(0)
	b.Push(tsFrame(1))
	if got := b.Snapshot(); got != nil {
		t.Errorf("Snapshot() = %v, want nil", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestPreBufferReset(t *testing.T) {
	b := capture.NewPreBuffer(3)
	b.Push(tsFrame(1))
	b.Push(tsFrame(2))
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", b.Len())
	}
	if got := b.Snapshot(); got != nil {
		t.Errorf("Snapshot() after Reset = %v, want nil", got)
	}
	b.Push(tsFrame(9))
	got := b.Snapshot()
	if len(got) != 1 || got[0].Timestamp != 9 {
		t.Errorf("Snapshot() after refill = %v, want single frame with timestamp 9", got)
	}
}
