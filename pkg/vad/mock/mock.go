// Package mock provides a test double for the vad package's Detector
// interface.
//
// Use Detector to script a sequence of verdicts and inspect the frames that
// were submitted for classification:
//
//	det := &mock.Detector{Script: []bool{false, true, true}}
//	v, _ := det.Detect(frame) // false, then true, then true, then repeats last
package mock

import (
	"sync"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/vad"
)

// DetectCall records a single invocation of Detector.Detect.
type DetectCall struct {
	// Frame is the frame passed to Detect. The sample slice is not copied.
	Frame audio.Frame
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Script is the sequence of Speech verdicts returned by successive
	// Detect calls. Once exhausted, the last entry repeats. An empty script
	// always returns non-speech.
	Script []bool

	// Err, if non-nil, is returned by every Detect call.
	Err error

	// DetectCalls records every call to Detect in order.
	DetectCalls []DetectCall

	next int
}

// Detect returns the next scripted verdict and records the call.
func (d *Detector) Detect(frame audio.Frame) (vad.Verdict, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectCalls = append(d.DetectCalls, DetectCall{Frame: frame})
	if d.Err != nil {
		return vad.Verdict{}, d.Err
	}
	if len(d.Script) == 0 {
		return vad.Verdict{}, nil
	}
	idx := d.next
	if idx >= len(d.Script) {
		idx = len(d.Script) - 1
	} else {
		d.next++
	}
	speech := d.Script[idx]
	v := vad.Verdict{Speech: speech, Energy: vad.Energy(frame)}
	if speech {
		v.Probability = 0.9
	}
	return v, nil
}

// Reset clears recorded calls and rewinds the script. Thread-safe.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectCalls = nil
	d.next = 0
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
