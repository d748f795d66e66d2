package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wrenvoice/wren/internal/observe"
	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/vad"
)

// Thresholder is implemented by detectors whose energy threshold can be
// raised by background calibration. Detectors that do not implement it are
// used as-is and calibration only records the measurement.
type Thresholder interface {
	Threshold() float64
	SetThreshold(float64)
}

// Session runs one voice-activity-gated capture attempt: calibrate, listen,
// detect, record, finalize. It owns the input stream lifecycle, the bounded
// frame queue, and the single decision goroutine.
//
// A Session is single-use. Construct with [NewSession], call [Session.Run]
// exactly once, and discard.
type Session struct {
	id       string
	cfg      Config
	source   Source
	detector vad.Detector
	metrics  *observe.Metrics

	queue *FrameQueue

	// streamErr receives the first driver fault. Buffered so the producer
	// side never blocks reporting it.
	streamErr chan error

	overflowWarn sync.Once
	clock        func() time.Time
	detOpts      []DetectorOption
}

// SessionOption configures a [Session] during construction.
type SessionOption func(*Session)

// WithMetrics records session telemetry to m instead of the package default.
func WithMetrics(m *observe.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithSessionClock overrides the wall clock used for session ceilings and
// the detector's time-based stop conditions.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.clock = now
		s.detOpts = append(s.detOpts, WithDetectorClock(now))
	}
}

// NewSession builds a session over the given source and detection strategy.
// Zero config fields are filled from [DefaultConfig].
func NewSession(source Source, detector vad.Detector, cfg Config, opts ...SessionOption) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		source:    source,
		detector:  detector,
		queue:     NewFrameQueue(cfg.QueueCapacity),
		streamErr: make(chan error, 1),
		clock:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ID returns the session's unique identifier, used in logs and artifact
// names.
func (s *Session) ID() string {
	return s.id
}

// Run executes the capture cycle and blocks until a terminal condition:
// natural utterance stop, no-speech timeout, overall listen ceiling, caller
// cancellation, or driver fault.
//
// Cancellation is graceful: whatever has been recorded is finalized, not
// discarded. A driver fault finalizes best-effort and returns a non-nil
// error alongside the [OutcomeStreamFault] result so callers can retry.
func (s *Session) Run(ctx context.Context) (Result, error) {
	log := observe.Logger(ctx).With("session_id", s.id)

	ctx, span := observe.StartSpan(ctx, "capture.session",
		trace.WithAttributes(attribute.String("session_id", s.id)))
	defer span.End()

	if s.metrics.ActiveSessions != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
		defer s.metrics.ActiveSessions.Add(ctx, -1)
	}

	start := s.clock()
	streamCfg := audio.StreamConfig{
		SampleRate: s.cfg.SampleRate,
		FrameSize:  s.cfg.FrameSize(),
		Device:     s.cfg.Device,
	}
	if err := s.source.Start(ctx, streamCfg, s.onFrame, s.onStreamErr); err != nil {
		return Result{Outcome: OutcomeStreamFault, StopReason: StopStreamFault},
			fmt.Errorf("capture: start stream: %w", err)
	}
	defer func() {
		if err := s.source.Stop(); err != nil {
			log.Warn("capture: stop stream", "err", err)
		}
	}()

	// Warm-up: measure ambient noise and raise the detection threshold if
	// the room is louder than the configured floor.
	calStart := s.clock()
	cal := Calibrate(s.cfg.Calibration, s.cfg.FrameDuration, s.effectiveFloor(), s.queue.Poll)
	if th, ok := s.detector.(Thresholder); ok && cal.Adapted {
		th.SetThreshold(cal.Threshold)
	}
	if s.metrics.CalibrationDuration != nil && s.cfg.Calibration.Enabled {
		s.metrics.CalibrationDuration.Record(ctx, s.clock().Sub(calStart).Seconds())
	}

	det := NewUtteranceDetector(s.cfg, s.detOpts...)
	log.Debug("capture: listening",
		"threshold", cal.Threshold,
		"frame_duration", s.cfg.FrameDuration,
		"confirm_frames", s.cfg.SpeechConfirmFrames,
	)

	res, err := s.decisionLoop(ctx, det, cal, start, log)

	elapsed := s.clock().Sub(start)
	if s.metrics.SessionDuration != nil {
		s.metrics.SessionDuration.Record(ctx, elapsed.Seconds())
	}
	s.metrics.RecordSessionOutcome(ctx, string(res.Outcome), string(res.StopReason))
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.String("stop_reason", string(res.StopReason)),
		attribute.Int64("frames_dropped", int64(res.Stats.FramesDropped)),
	)
	log.Info("capture: session finished",
		"outcome", res.Outcome,
		"stop_reason", res.StopReason,
		"recorded", res.Duration,
		"elapsed", elapsed,
		"frames", res.Stats.FramesProcessed,
		"dropped", res.Stats.FramesDropped,
	)
	return res, err
}

// decisionLoop is the consumer side: it pulls frames with a short poll
// timeout so explicit cancellation, driver faults, and the session ceilings
// stay observable even when no audio arrives.
func (s *Session) decisionLoop(ctx context.Context, det *UtteranceDetector, cal CalibrationResult, start time.Time, log *slog.Logger) (Result, error) {
	stats := Stats{}

	finalize := func(outcome Outcome, reason StopReason) Result {
		stats.FramesDropped = s.queue.Dropped()
		stats.SpeechFrames = det.SpeechFrames()
		res := Result{
			Outcome:     outcome,
			StopReason:  reason,
			SampleRate:  s.cfg.SampleRate,
			Calibration: cal,
			Stats:       stats,
		}
		if outcome == OutcomeCaptured || outcome == OutcomeStreamFault {
			res.Samples = det.Samples()
			res.Duration = det.RecordedDuration()
		}
		if outcome == OutcomeCaptured && len(res.Samples) == 0 {
			// Nothing was ever recorded; report that explicitly instead of
			// handing back an ambiguous empty buffer.
			res.Outcome = OutcomeNoSpeech
		}
		return res
	}

	for {
		select {
		case <-ctx.Done():
			if det.State() == StateRecording {
				log.Debug("capture: cancelled mid-recording, finalizing")
				return finalize(OutcomeCaptured, StopCancelled), nil
			}
			return finalize(OutcomeNoSpeech, StopCancelled), nil
		case err := <-s.streamErr:
			log.Warn("capture: stream fault", "err", err)
			return finalize(OutcomeStreamFault, StopStreamFault),
				fmt.Errorf("capture: stream fault: %w", err)
		default:
		}

		now := s.clock()
		if now.Sub(start) >= s.cfg.MaxListenDuration {
			if det.State() == StateRecording {
				return finalize(OutcomeCaptured, StopListenTimeout), nil
			}
			return finalize(OutcomeNoSpeech, StopListenTimeout), nil
		}
		if det.State() == StateIdle || det.State() == StateAccumulating {
			if now.Sub(start) >= s.cfg.NoSpeechTimeout {
				return finalize(OutcomeNoSpeech, StopNoSpeech), nil
			}
		}

		frame, ok := s.queue.Poll(s.cfg.PollInterval)
		if !ok {
			if reason := det.Tick(); reason != StopNone {
				return finalize(OutcomeCaptured, reason), nil
			}
			continue
		}

		stats.FramesProcessed++
		if s.metrics.FramesProcessed != nil {
			s.metrics.FramesProcessed.Add(ctx, 1)
		}

		verdict, err := s.detector.Detect(frame)
		if err != nil {
			// A broken detector cannot gate audio; treat it like a stream
			// fault so the caller retries with a fresh session.
			log.Warn("capture: detector failed", "err", err)
			return finalize(OutcomeStreamFault, StopStreamFault),
				fmt.Errorf("capture: detect: %w", err)
		}

		if reason := det.Observe(frame, verdict.Speech); reason != StopNone {
			return finalize(OutcomeCaptured, reason), nil
		}
	}
}

// onFrame is the producer path, invoked from the driver callback. It only
// copies into the queue; all decisions happen on the consumer side.
func (s *Session) onFrame(frame audio.Frame) {
	if s.queue.Offer(frame) {
		if s.metrics.FramesDropped != nil {
			s.metrics.FramesDropped.Add(context.Background(), 1)
		}
		s.overflowWarn.Do(func() {
			slog.Warn("capture: frame queue overflow, dropping oldest",
				"session_id", s.id,
				"capacity", s.cfg.QueueCapacity,
			)
		})
	}
}

// onStreamErr forwards the first driver fault to the decision loop.
func (s *Session) onStreamErr(err error) {
	select {
	case s.streamErr <- err:
	default:
	}
}

// effectiveFloor returns the detection threshold floor: the detector's own
// threshold when it exposes a non-zero one, the configured default otherwise.
func (s *Session) effectiveFloor() float64 {
	if th, ok := s.detector.(Thresholder); ok {
		if v := th.Threshold(); v > 0 {
			return v
		}
	}
	return s.cfg.EnergyThreshold
}
