// Package observe provides application-wide observability primitives for
// SoundTap: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all SoundTap metrics.
const meterName = "github.com/MrWong99/soundtap"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// BlocksReceived counts raw sample blocks delivered by the audio backend.
	// Use with attributes:
	//   attribute.String("backend", ...), attribute.String("source", ...)
	BlocksReceived metric.Int64Counter

	// FramesEmitted counts fixed-size frames delivered to the sink. Use with
	// attributes:
	//   attribute.String("backend", ...), attribute.String("source", ...)
	FramesEmitted metric.Int64Counter

	// SamplesDiscarded counts samples dropped when a session is stopped with
	// a partial frame still accumulating. Use with attribute:
	//   attribute.String("source", ...)
	SamplesDiscarded metric.Int64Counter

	// CaptureErrors counts failed capture starts. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("reason", ...)
	CaptureErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- Histograms ---

	// BlockSize tracks the size (in samples) of blocks delivered by the
	// backend, which varies with the host's audio buffering.
	BlockSize metric.Int64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// blockSizeBuckets defines histogram bucket boundaries (in samples) spanning
// the buffer sizes host audio stacks commonly deliver.
var blockSizeBuckets = []float64{
	64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.BlocksReceived, err = m.Int64Counter("soundtap.blocks.received",
		metric.WithDescription("Total raw sample blocks received from the audio backend."),
	); err != nil {
		return nil, err
	}
	if met.FramesEmitted, err = m.Int64Counter("soundtap.frames.emitted",
		metric.WithDescription("Total fixed-size frames delivered to the sink."),
	); err != nil {
		return nil, err
	}
	if met.SamplesDiscarded, err = m.Int64Counter("soundtap.samples.discarded",
		metric.WithDescription("Total samples discarded from partial frames at session stop."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("soundtap.capture.errors",
		metric.WithDescription("Total failed capture starts by backend and reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("soundtap.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.BlockSize, err = m.Int64Histogram("soundtap.block.size",
		metric.WithDescription("Size in samples of blocks delivered by the audio backend."),
		metric.WithUnit("{sample}"),
		metric.WithExplicitBucketBoundaries(blockSizeBuckets...),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("soundtap.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordBlock records one received block and its size with the standard
// attribute set.
func (m *Metrics) RecordBlock(ctx context.Context, backend, source string, size int) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("source", source),
	)
	m.BlocksReceived.Add(ctx, 1, attrs)
	m.BlockSize.Record(ctx, int64(size), attrs)
}

// RecordFrame records one emitted frame with the standard attribute set.
func (m *Metrics) RecordFrame(ctx context.Context, backend, source string) {
	m.FramesEmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("source", source),
		),
	)
}

// RecordDiscarded records samples dropped from a partial frame at stop.
func (m *Metrics) RecordDiscarded(ctx context.Context, source string, samples int) {
	if samples <= 0 {
		return
	}
	m.SamplesDiscarded.Add(ctx, int64(samples),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordCaptureError records a failed capture start.
func (m *Metrics) RecordCaptureError(ctx context.Context, backend, reason string) {
	m.CaptureErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("reason", reason),
		),
	)
}
