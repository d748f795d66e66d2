// Package audio defines the frame type and PCM sample helpers shared by the
// capture pipeline.
//
// A [Frame] is the atomic unit of processing: one fixed-duration chunk of
// mono samples delivered by the input driver. Frames are treated as immutable
// once produced: the driver callback copies sample data out of the driver's
// buffer before constructing a Frame, and downstream stages never mutate it.
package audio

import "time"

// Frame is a single fixed-duration chunk of mono audio.
type Frame struct {
	// Samples holds normalized sample values in [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for capture destined for STT).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// StreamConfig describes the input stream a capture source should open.
type StreamConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// FrameSize is the number of samples per delivered frame.
	FrameSize int

	// Device selects a named input device. Empty means the system default.
	Device string
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
