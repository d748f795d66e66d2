package vad

import (
	"log/slog"
	"sync"

	"github.com/wrenvoice/wren/pkg/audio"
)

// conjunction requires both detectors to classify a frame as speech.
//
// The two-detector agreement policy is deliberate: an external model alone
// triggers on breaths and keyboard noise, and an energy gate alone triggers
// on any loud transient. Requiring agreement suppresses both failure modes
// at the cost of a slightly later speech start.
type conjunction struct {
	primary     Detector
	secondary   Detector
	warnDegrade sync.Once
}

// Conjunction returns a [Detector] that reports speech only when both
// primary and secondary do. The primary acts as a gate: when it reports
// non-speech the secondary is not consulted and its verdict is returned
// as-is. Otherwise Energy and Probability are merged from the two verdicts
// (first non-zero wins for Energy, secondary's Probability is kept).
//
// If the secondary detector fails, the frame is classified by the primary
// alone and the failure is logged once per session. A primary failure is
// returned to the caller.
func Conjunction(primary, secondary Detector) Detector {
	return &conjunction{primary: primary, secondary: secondary}
}

// Detect implements [Detector].
func (c *conjunction) Detect(frame audio.Frame) (Verdict, error) {
	pv, err := c.primary.Detect(frame)
	if err != nil {
		return Verdict{}, err
	}
	if !pv.Speech {
		return pv, nil
	}

	sv, err := c.secondary.Detect(frame)
	if err != nil {
		c.warnDegrade.Do(func() {
			slog.Warn("vad: secondary detector failed, degrading to primary only", "err", err)
		})
		return pv, nil
	}

	out := Verdict{
		Speech:      pv.Speech && sv.Speech,
		Energy:      pv.Energy,
		Probability: sv.Probability,
	}
	if out.Energy == 0 {
		out.Energy = sv.Energy
	}
	return out, nil
}

// Threshold returns the primary detector's threshold, or zero when the
// primary does not expose one.
func (c *conjunction) Threshold() float64 {
	if t, ok := c.primary.(interface{ Threshold() float64 }); ok {
		return t.Threshold()
	}
	return 0
}

// SetThreshold forwards a calibrated threshold to the primary detector.
// No-op when the primary does not expose a threshold.
func (c *conjunction) SetThreshold(threshold float64) {
	if t, ok := c.primary.(interface{ SetThreshold(float64) }); ok {
		t.SetThreshold(threshold)
	}
}
