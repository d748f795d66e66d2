package capture

import (
	"log/slog"
	"time"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/vad"
)

// CalibrationConfig tunes the background-noise warm-up pass that runs at
// session start, before detection begins.
type CalibrationConfig struct {
	// Enabled turns calibration on. When off, the configured threshold
	// floor is used as-is.
	Enabled bool

	// TargetDuration is how much ambient audio to sample.
	TargetDuration time.Duration

	// Timeout bounds the wall-clock spent waiting for calibration frames.
	// Calibration fails soft: whatever was collected by the deadline is
	// used, and zero frames keeps the default threshold.
	Timeout time.Duration

	// Multiplier scales the measured background energy into the adaptive
	// threshold.
	Multiplier float64
}

// DefaultCalibrationConfig returns the warm-up tuning: half a second of
// ambient audio, a two-second deadline, threshold at five times background.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		Enabled:        true,
		TargetDuration: 500 * time.Millisecond,
		Timeout:        2 * time.Second,
		Multiplier:     5,
	}
}

// CalibrationResult is the immutable, session-scoped outcome of the warm-up
// pass.
type CalibrationResult struct {
	// BackgroundEnergy is the mean RMS energy of the sampled frames.
	BackgroundEnergy float64

	// Threshold is the effective detection threshold for the session: the
	// adaptive value when it exceeds the configured floor, the floor
	// otherwise.
	Threshold float64

	// Frames is how many frames contributed to the estimate. Zero means
	// calibration was skipped or collected nothing.
	Frames int

	// Adapted reports whether the adaptive threshold replaced the floor.
	Adapted bool
}

// Calibrate samples ambient frames from poll until the target frame count is
// reached or the timeout elapses, then derives the session threshold. floor
// is the configured default threshold; the adaptive threshold only ever
// raises it.
//
// poll has the same contract as [FrameQueue.Poll]; Calibrate is driven by
// the decision loop before detection starts, so it shares the queue.
func Calibrate(cfg CalibrationConfig, frameDuration time.Duration, floor float64, poll func(timeout time.Duration) (audio.Frame, bool)) CalibrationResult {
	res := CalibrationResult{Threshold: floor}
	if !cfg.Enabled || frameDuration <= 0 {
		return res
	}

	target := int(cfg.TargetDuration / frameDuration)
	if target <= 0 {
		target = 1
	}
	deadline := time.Now().Add(cfg.Timeout)

	var sum float64
	for res.Frames < target {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		frame, ok := poll(remaining)
		if !ok {
			break
		}
		sum += vad.Energy(frame)
		res.Frames++
	}

	if res.Frames == 0 {
		slog.Debug("capture: calibration collected no frames, keeping default threshold", "threshold", floor)
		return res
	}

	res.BackgroundEnergy = sum / float64(res.Frames)
	adaptive := res.BackgroundEnergy * cfg.Multiplier
	if adaptive > floor {
		res.Threshold = adaptive
		res.Adapted = true
	}

	slog.Debug("capture: background calibrated",
		"frames", res.Frames,
		"background_energy", res.BackgroundEnergy,
		"threshold", res.Threshold,
		"adapted", res.Adapted,
	)
	return res
}
