// Package observe provides observability primitives for videopro:
// OpenTelemetry metrics, tracing, trace-aware slog loggers, and an
// instrumented HTTP transport for provider calls.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via /metrics while a job runs. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all videopro metrics.
const meterName = "github.com/anujsonawane60/my-video-pro-app"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks pipeline stage latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// ProviderDuration tracks external API call latency. Attributes:
	// provider, kind.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// SoftWarnings counts failures that did not stop a job. Attributes:
	// stage, kind.
	SoftWarnings metric.Int64Counter

	// VADFrames counts classified frames. Attribute: speech (bool).
	VADFrames metric.Int64Counter

	// SegmentsDetected counts speech segments found by detection.
	SegmentsDetected metric.Int64Counter

	// ResynthEntries counts subtitle entries by outcome. Attribute: action
	// (unchanged, pad, stretch, skipped).
	ResynthEntries metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// ActiveJobs tracks the number of jobs in flight.
	ActiveJobs metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Stages
// and cloud transcription of long recordings run for minutes.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("videopro.stage.duration",
		metric.WithDescription("Latency of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("videopro.provider.duration",
		metric.WithDescription("Latency of external provider API calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("videopro.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("videopro.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.SoftWarnings, err = m.Int64Counter("videopro.soft_warnings",
		metric.WithDescription("Soft failures that did not abort a job, by stage and kind."),
	); err != nil {
		return nil, err
	}
	if met.VADFrames, err = m.Int64Counter("videopro.vad.frames",
		metric.WithDescription("Classified VAD frames by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDetected, err = m.Int64Counter("videopro.segments.detected",
		metric.WithDescription("Speech segments found by detection."),
	); err != nil {
		return nil, err
	}
	if met.ResynthEntries, err = m.Int64Counter("videopro.resynth.entries",
		metric.WithDescription("Resynthesized subtitle entries by reconciliation action."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("videopro.circuit_breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("videopro.active_jobs",
		metric.WithDescription("Number of jobs in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSoftWarning counts a failure that a stage recovered from.
func (m *Metrics) RecordSoftWarning(ctx context.Context, stage, kind string) {
	m.SoftWarnings.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", kind),
		),
	)
}

// RecordVADFrames adds one detection pass's frame counts.
func (m *Metrics) RecordVADFrames(ctx context.Context, speech, silence int) {
	if speech > 0 {
		m.VADFrames.Add(ctx, int64(speech), metric.WithAttributes(attribute.Bool("speech", true)))
	}
	if silence > 0 {
		m.VADFrames.Add(ctx, int64(silence), metric.WithAttributes(attribute.Bool("speech", false)))
	}
}

// RecordSegments adds n detected speech segments.
func (m *Metrics) RecordSegments(ctx context.Context, n int) {
	m.SegmentsDetected.Add(ctx, int64(n))
}

// RecordResynthEntry counts one resynthesized entry by action.
func (m *Metrics) RecordResynthEntry(ctx context.Context, action string) {
	m.ResynthEntries.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordBreakerTransition counts a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
