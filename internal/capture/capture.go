// Package capture implements the voice-activity-gated audio capture engine.
//
// A [Session] listens on a microphone stream, decides in real time whether
// speech is occurring, and hands back a trimmed, normalized sample buffer
// once the utterance ends. Per session there are exactly two threads of
// control: the audio driver's producer callback, which must never block, and
// one decision goroutine that consumes frames from a bounded queue. The two
// communicate only through that queue; all other session state is owned by
// the decision loop.
//
// Sessions are single-use: construct one per listening attempt, call
// [Session.Run], and discard it. No captured state survives a session except
// configuration defaults.
package capture

import (
	"context"
	"time"

	"github.com/wrenvoice/wren/pkg/audio"
)

// Source is the audio input collaborator. Implementations wrap a platform
// audio driver (e.g., PortAudio) and invoke onFrame from the driver's own
// callback context for every captured frame. The callback must be treated as
// real-time: implementations and callers alike must not block in it.
//
// onErr reports a driver fault mid-stream (device unplugged, overrun the
// driver could not recover). After onErr the stream may stop delivering
// frames; the session aborts and finalizes best-effort.
type Source interface {
	// Start opens the stream and begins delivering frames. It returns once
	// the stream is running; frames arrive asynchronously.
	Start(ctx context.Context, cfg audio.StreamConfig, onFrame func(audio.Frame), onErr func(error)) error

	// Stop closes the stream. No onFrame calls are made after Stop returns.
	// Safe to call more than once.
	Stop() error
}

// Config holds the tuning parameters of a capture session.
type Config struct {
	// SampleRate of the capture stream in Hz.
	SampleRate int

	// Device selects a named input device. Empty means the system default.
	Device string

	// FrameDuration is the length of one frame. Detection granularity and
	// all frame-counted timeouts derive from it.
	FrameDuration time.Duration

	// SilenceTimeout is the trailing silence that ends an utterance.
	SilenceTimeout time.Duration

	// MinRecordingDuration is the floor below which no stop condition is
	// honoured once recording has started.
	MinRecordingDuration time.Duration

	// ForceStopAfter hard-caps the recorded duration regardless of signal.
	ForceStopAfter time.Duration

	// SpeechConfirmFrames is the number of consecutive speech frames needed
	// to confirm an utterance start.
	SpeechConfirmFrames int

	// PreRoll is how much audio from just before the confirmed start is
	// recovered from the rolling pre-buffer.
	PreRoll time.Duration

	// NoSpeechTimeout aborts the session when no utterance has been
	// confirmed within this long after listen start.
	NoSpeechTimeout time.Duration

	// MaxListenDuration bounds the whole session wall-clock, in any state.
	MaxListenDuration time.Duration

	// EnergyThreshold is the default detection floor in RMS energy.
	// Calibration may raise the effective threshold, never lower it.
	EnergyThreshold float64

	// QueueCapacity is the bounded frame queue size between the producer
	// callback and the decision loop.
	QueueCapacity int

	// PollInterval is how long the decision loop waits for a frame before
	// re-checking stop signals.
	PollInterval time.Duration

	// Calibration configures the background-noise warm-up pass.
	Calibration CalibrationConfig
}

// DefaultConfig returns the tuning used by the assistant front end: 16 kHz
// mono, 20 ms frames, 2 s silence timeout, 15 s hard cap.
func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		FrameDuration:        20 * time.Millisecond,
		SilenceTimeout:       2 * time.Second,
		MinRecordingDuration: 500 * time.Millisecond,
		ForceStopAfter:       15 * time.Second,
		SpeechConfirmFrames:  10,
		PreRoll:              300 * time.Millisecond,
		NoSpeechTimeout:      10 * time.Second,
		MaxListenDuration:    45 * time.Second,
		EnergyThreshold:      0.003,
		QueueCapacity:        50,
		PollInterval:         100 * time.Millisecond,
		Calibration:          DefaultCalibrationConfig(),
	}
}

// FrameSize returns the number of samples per frame.
func (c Config) FrameSize() int {
	return int(int64(c.SampleRate) * int64(c.FrameDuration) / int64(time.Second))
}

// withDefaults fills zero fields from [DefaultConfig].
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = def.FrameDuration
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = def.SilenceTimeout
	}
	if c.MinRecordingDuration <= 0 {
		c.MinRecordingDuration = def.MinRecordingDuration
	}
	if c.ForceStopAfter <= 0 {
		c.ForceStopAfter = def.ForceStopAfter
	}
	if c.SpeechConfirmFrames <= 0 {
		c.SpeechConfirmFrames = def.SpeechConfirmFrames
	}
	if c.PreRoll < 0 {
		c.PreRoll = def.PreRoll
	}
	if c.NoSpeechTimeout <= 0 {
		c.NoSpeechTimeout = def.NoSpeechTimeout
	}
	if c.MaxListenDuration <= 0 {
		c.MaxListenDuration = def.MaxListenDuration
	}
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = def.EnergyThreshold
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}

// State is the utterance detector's position in its lifecycle.
type State int

const (
	// StateIdle means no speech has been observed recently.
	StateIdle State = iota

	// StateAccumulating means speech was detected but the confirm window
	// has not yet been reached.
	StateAccumulating

	// StateRecording means the utterance is confirmed and frames are being
	// persisted.
	StateRecording

	// StateStopping is terminal: a stop condition fired and the buffer is
	// being finalized.
	StateStopping
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StopReason names the condition that ended a session. The evaluation order
// of the recording stop conditions is part of the contract: silence timeout,
// then hard cap, then extended silence. First match wins.
type StopReason string

const (
	// StopNone means no stop condition has fired.
	StopNone StopReason = ""

	// StopSilenceTimeout fired because trailing silence reached the
	// configured timeout after the minimum duration was met.
	StopSilenceTimeout StopReason = "silence_timeout"

	// StopMaxDuration fired because the recording reached the hard cap.
	StopMaxDuration StopReason = "max_duration"

	// StopExtendedSilence fired because too much wall-clock time passed
	// since the last speech frame. Catches detector flapping that keeps
	// resetting the silence counter without genuine continued speech.
	StopExtendedSilence StopReason = "extended_silence"

	// StopCancelled means the caller cancelled the session; whatever was
	// recorded is finalized rather than discarded.
	StopCancelled StopReason = "cancelled"

	// StopNoSpeech means no utterance was confirmed within the no-speech
	// window.
	StopNoSpeech StopReason = "no_speech"

	// StopListenTimeout means the overall session ceiling elapsed.
	StopListenTimeout StopReason = "listen_timeout"

	// StopStreamFault means the audio driver reported an error.
	StopStreamFault StopReason = "stream_fault"
)

// Outcome classifies a session result for the caller.
type Outcome string

const (
	// OutcomeCaptured means a non-empty utterance was recorded.
	OutcomeCaptured Outcome = "captured"

	// OutcomeNoSpeech means the session ended without a confirmed
	// utterance. Explicit and distinct from captured silence.
	OutcomeNoSpeech Outcome = "no_speech"

	// OutcomeStreamFault means the driver failed mid-session. The result
	// may still carry best-effort audio; callers should retry.
	OutcomeStreamFault Outcome = "stream_fault"
)

// Stats summarizes queue and detection activity over a session.
type Stats struct {
	// FramesProcessed is the number of frames the decision loop consumed.
	FramesProcessed int

	// FramesDropped is the number of frames evicted on queue overflow.
	FramesDropped uint64

	// SpeechFrames is the number of frames classified as speech.
	SpeechFrames int
}

// Result is the product of one capture session.
type Result struct {
	// Outcome classifies the session.
	Outcome Outcome

	// StopReason names the condition that ended it.
	StopReason StopReason

	// Samples is the raw recorded buffer (pre-roll included, untrimmed).
	// Nil when Outcome is not OutcomeCaptured.
	Samples []float32

	// SampleRate of Samples in Hz.
	SampleRate int

	// Duration is the audio duration of Samples.
	Duration time.Duration

	// Calibration is the background-noise estimate used for detection.
	Calibration CalibrationResult

	// Stats summarizes queue and detection activity.
	Stats Stats
}
