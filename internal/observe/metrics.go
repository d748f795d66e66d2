// Package observe provides application-wide observability primitives for
// Wren: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [Init] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Wren metrics.
const meterName = "github.com/wrenvoice/wren"

// Metrics holds all OpenTelemetry metric instruments for the capture
// pipeline. All fields are safe for concurrent use; the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// --- Duration histograms ---

	// SessionDuration tracks wall-clock time of a full capture session,
	// from listen start to finalization.
	SessionDuration metric.Float64Histogram

	// UtteranceDuration tracks the audio duration of finalized utterances
	// after trimming.
	UtteranceDuration metric.Float64Histogram

	// CalibrationDuration tracks background-noise calibration time.
	CalibrationDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts frames consumed by the decision loop.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames evicted from the capture queue on
	// overflow.
	FramesDropped metric.Int64Counter

	// SessionOutcomes counts finished sessions. Use with attributes:
	//   attribute.String("outcome", ...), attribute.String("stop_reason", ...)
	SessionOutcomes metric.Int64Counter

	// SinkErrors counts failed artifact writes.
	SinkErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of capture sessions currently
	// running. With one microphone this is 0 or 1; the gauge exists to
	// catch leaked sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// capture sessions: calibration takes well under a second, utterances a few
// seconds, and the hard cap bounds everything at tens of seconds.
var durationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionDuration, err = m.Float64Histogram("wren.capture.session.duration",
		metric.WithDescription("Wall-clock duration of a capture session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("wren.capture.utterance.duration",
		metric.WithDescription("Audio duration of finalized utterances after trimming."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CalibrationDuration, err = m.Float64Histogram("wren.capture.calibration.duration",
		metric.WithDescription("Duration of background-noise calibration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("wren.capture.frames.processed",
		metric.WithDescription("Frames consumed by the decision loop."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("wren.capture.frames.dropped",
		metric.WithDescription("Frames evicted from the capture queue on overflow."),
	); err != nil {
		return nil, err
	}
	if met.SessionOutcomes, err = m.Int64Counter("wren.capture.sessions",
		metric.WithDescription("Finished capture sessions by outcome and stop reason."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("wren.capture.sink.errors",
		metric.WithDescription("Failed artifact writes."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("wren.capture.sessions.active",
		metric.WithDescription("Capture sessions currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// --- Default instance ---

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// globally registered meter provider. The first call creates the instruments;
// creation errors are silently discarded in favour of no-op instruments, so
// callers never receive nil.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordUtterance records the trimmed audio duration, in seconds, of a
// finalized utterance. Safe to call on a zero-value Metrics (no-op).
func (m *Metrics) RecordUtterance(ctx context.Context, seconds float64) {
	if m == nil || m.UtteranceDuration == nil {
		return
	}
	m.UtteranceDuration.Record(ctx, seconds)
}

// RecordSinkError counts a failed artifact write. Safe to call on a
// zero-value Metrics (no-op).
func (m *Metrics) RecordSinkError(ctx context.Context) {
	if m == nil || m.SinkErrors == nil {
		return
	}
	m.SinkErrors.Add(ctx, 1)
}

// RecordSessionOutcome increments the session counter with outcome and stop
// reason attributes. Safe to call on a zero-value Metrics (no-op).
func (m *Metrics) RecordSessionOutcome(ctx context.Context, outcome, stopReason string) {
	if m == nil || m.SessionOutcomes == nil {
		return
	}
	m.SessionOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("stop_reason", stopReason),
		),
	)
}
