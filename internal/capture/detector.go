package capture

import (
	"time"

	"github.com/wrenvoice/wren/pkg/audio"
)

// extendedSilenceFactor scales the silence timeout for the extended-silence
// stop condition, which keys off wall-clock time since the last speech frame
// instead of the consecutive-silence counter.
const extendedSilenceFactor = 1.5

// UtteranceDetector is the per-frame state machine that decides when an
// utterance starts and stops. It owns the rolling pre-buffer and the
// recording buffer; the caller feeds it one frame plus its speech verdict at
// a time and reacts to the returned [StopReason].
//
// A detector is single-use and owned by one goroutine. Once it reaches
// [StateStopping] it must be discarded.
type UtteranceDetector struct {
	cfg Config
	now func() time.Time

	state              State
	pre                *PreBuffer
	recording          []audio.Frame
	recorded           time.Duration
	consecutiveSpeech  int
	consecutiveSilence int
	speechFrames       int
	recordStart        time.Time
	lastSpeech         time.Time
}

// DetectorOption configures an [UtteranceDetector] during construction.
type DetectorOption func(*UtteranceDetector)

// WithDetectorClock overrides the wall clock, for tests that exercise the
// time-based stop conditions without sleeping.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *UtteranceDetector) { d.now = now }
}

// NewUtteranceDetector returns a detector in [StateIdle]. Zero config fields
// are filled from [DefaultConfig].
func NewUtteranceDetector(cfg Config, opts ...DetectorOption) *UtteranceDetector {
	cfg = cfg.withDefaults()
	preFrames := 0
	if cfg.FrameDuration > 0 {
		preFrames = int(cfg.PreRoll / cfg.FrameDuration)
	}
	d := &UtteranceDetector{
		cfg: cfg,
		now: time.Now,
		pre: NewPreBuffer(preFrames),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State returns the current lifecycle state.
func (d *UtteranceDetector) State() State {
	return d.state
}

// RecordedDuration returns the audio duration accumulated in the recording
// buffer, including pre-roll.
func (d *UtteranceDetector) RecordedDuration() time.Duration {
	return d.recorded
}

// SpeechFrames returns how many observed frames carried a speech verdict.
func (d *UtteranceDetector) SpeechFrames() int {
	return d.speechFrames
}

// Samples concatenates the recording buffer into one contiguous sample
// slice. Returns nil when nothing was recorded.
func (d *UtteranceDetector) Samples() []float32 {
	if len(d.recording) == 0 {
		return nil
	}
	total := 0
	for _, f := range d.recording {
		total += len(f.Samples)
	}
	out := make([]float32, 0, total)
	for _, f := range d.recording {
		out = append(out, f.Samples...)
	}
	return out
}

// Observe advances the state machine by one frame. It returns [StopNone]
// until a stop condition fires, at which point the detector transitions to
// the terminal [StateStopping] and reports the first matching reason.
func (d *UtteranceDetector) Observe(frame audio.Frame, speech bool) StopReason {
	if d.state == StateStopping {
		return StopNone
	}
	if speech {
		d.speechFrames++
	}

	switch d.state {
	case StateIdle, StateAccumulating:
		if speech {
			d.consecutiveSpeech++
			d.lastSpeech = d.now()
			if d.consecutiveSpeech >= d.cfg.SpeechConfirmFrames {
				d.startRecording(frame)
				return StopNone
			}
			d.state = StateAccumulating
		} else {
			// The counter decays by one per silent frame, floor zero.
			if d.consecutiveSpeech > 0 {
				d.consecutiveSpeech--
			}
			if d.consecutiveSpeech == 0 {
				d.state = StateIdle
			}
		}
		d.pre.Push(frame)
		return StopNone

	case StateRecording:
		d.recording = append(d.recording, frame)
		d.recorded += frame.Duration()
		if speech {
			d.consecutiveSilence = 0
			d.lastSpeech = d.now()
		} else {
			d.consecutiveSilence++
		}
		return d.evaluateStop()
	}
	return StopNone
}

// Tick re-evaluates the time-based stop conditions when no frame arrived
// within the poll interval. A stalled driver must not keep a recording open
// past the hard cap.
func (d *UtteranceDetector) Tick() StopReason {
	if d.state != StateRecording {
		return StopNone
	}
	now := d.now()
	if now.Sub(d.recordStart) >= d.cfg.ForceStopAfter {
		d.state = StateStopping
		return StopMaxDuration
	}
	if d.recorded >= d.cfg.MinRecordingDuration && d.sinceLastSpeech(now) > d.extendedSilence() {
		d.state = StateStopping
		return StopExtendedSilence
	}
	return StopNone
}

// startRecording transitions to StateRecording, seeding the recording
// buffer with the pre-roll before appending the confirming frame.
func (d *UtteranceDetector) startRecording(frame audio.Frame) {
	d.state = StateRecording
	d.recordStart = d.now()
	d.consecutiveSilence = 0

	for _, f := range d.pre.Snapshot() {
		d.recording = append(d.recording, f)
		d.recorded += f.Duration()
	}
	d.pre.Reset()

	d.recording = append(d.recording, frame)
	d.recorded += frame.Duration()
}

// evaluateStop checks the recording stop conditions in contract order and
// returns the first that fires. No condition is honoured below the minimum
// recording duration except the hard cap, which is unconditional.
func (d *UtteranceDetector) evaluateStop() StopReason {
	silence := time.Duration(d.consecutiveSilence) * d.cfg.FrameDuration
	minMet := d.recorded >= d.cfg.MinRecordingDuration

	switch {
	case minMet && silence >= d.cfg.SilenceTimeout:
		d.state = StateStopping
		return StopSilenceTimeout
	case d.recorded >= d.cfg.ForceStopAfter:
		d.state = StateStopping
		return StopMaxDuration
	case minMet && d.sinceLastSpeech(d.now()) > d.extendedSilence():
		d.state = StateStopping
		return StopExtendedSilence
	}
	return StopNone
}

func (d *UtteranceDetector) extendedSilence() time.Duration {
	return time.Duration(float64(d.cfg.SilenceTimeout) * extendedSilenceFactor)
}

func (d *UtteranceDetector) sinceLastSpeech(now time.Time) time.Duration {
	if d.lastSpeech.IsZero() {
		return 0
	}
	return now.Sub(d.lastSpeech)
}
