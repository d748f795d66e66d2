// Package vad defines the per-frame speech detection strategies used to gate
// audio capture.
//
// A [Detector] classifies a single audio frame as speech or non-speech. The
// built-in [EnergyDetector] uses root-mean-square amplitude against a
// threshold; external engines (e.g., a Silero model) plug in through the same
// interface. [Conjunction] combines two detectors so that both must agree,
// trading speech-start latency for fewer false positives.
//
// Detectors are stateful per capture session and are not safe for concurrent
// use unless an implementation documents otherwise. Create a fresh detector
// per session.
package vad

import (
	"math"

	"github.com/wrenvoice/wren/pkg/audio"
)

// Verdict is the detection result for a single frame.
type Verdict struct {
	// Speech reports whether the frame was classified as speech.
	Speech bool

	// Energy is the root-mean-square amplitude of the frame, in the
	// normalized [0, 1] domain. Always populated by the energy detector;
	// combinators propagate it from the first detector that sets it.
	Energy float64

	// Probability is the speech probability reported by an external engine,
	// in [0, 1]. Zero when no external engine participated.
	Probability float64
}

// Detector classifies one frame at a time.
//
// Detect is called synchronously from the capture decision loop and must not
// block. Returning an error marks the detector as failed for this frame; the
// caller decides whether to degrade or abort.
type Detector interface {
	Detect(frame audio.Frame) (Verdict, error)
}

// Energy computes the root-mean-square amplitude of a frame. Samples are
// already in the normalized [-1, 1] domain, so the result lies in [0, 1].
// Pure function, O(len(frame.Samples)).
func Energy(frame audio.Frame) float64 {
	if len(frame.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame.Samples)))
}
