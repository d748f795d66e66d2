package vad

import "github.com/wrenvoice/wren/pkg/audio"

// EnergyDetector classifies a frame as speech when its RMS energy is
// strictly above a threshold. A frame whose energy equals the threshold
// exactly is non-speech; the boundary belongs to silence so that a perfectly
// calibrated ambient level never triggers detection.
//
// The threshold may be raised after construction by a background-noise
// calibration pass. An EnergyDetector is owned by a single capture session's
// decision loop and is not safe for concurrent use.
type EnergyDetector struct {
	threshold float64
}

// NewEnergyDetector returns a detector with the given initial threshold.
func NewEnergyDetector(threshold float64) *EnergyDetector {
	return &EnergyDetector{threshold: threshold}
}

// Detect implements [Detector].
func (d *EnergyDetector) Detect(frame audio.Frame) (Verdict, error) {
	e := Energy(frame)
	return Verdict{Speech: e > d.threshold, Energy: e}, nil
}

// Threshold returns the current detection threshold.
func (d *EnergyDetector) Threshold() float64 {
	return d.threshold
}

// SetThreshold replaces the detection threshold. Callers should only ever
// raise it above the configured floor; lowering it weakens detection below
// what the configuration guarantees.
func (d *EnergyDetector) SetThreshold(threshold float64) {
	d.threshold = threshold
}

var _ Detector = (*EnergyDetector)(nil)
