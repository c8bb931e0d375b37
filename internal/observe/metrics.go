// Package observe provides application-wide observability primitives for
// adaptran: OpenTelemetry metrics, tracing helpers, and the Prometheus
// exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all adaptran metrics.
const meterName = "github.com/MrWong99/adaptran"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranslateDuration tracks end-to-end translation latency.
	TranslateDuration metric.Float64Histogram

	// LearnDuration tracks end-to-end learning-event latency.
	LearnDuration metric.Float64Histogram

	// ExtractDuration tracks grammar extraction latency (cache misses only).
	ExtractDuration metric.Float64Histogram

	// AlignDuration tracks forced-alignment latency.
	AlignDuration metric.Float64Histogram

	// --- Counters ---

	// Commands counts protocol commands. Use with attributes:
	//   attribute.String("verb", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// GrammarLookups counts grammar cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	GrammarLookups metric.Int64Counter

	// GrammarEvictions counts grammar cache evictions.
	GrammarEvictions metric.Int64Counter

	// --- Gauges ---

	// ActiveContexts tracks the number of live translation contexts.
	ActiveContexts metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for decoder and extractor latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranslateDuration, err = m.Float64Histogram("adaptran.translate.duration",
		metric.WithDescription("End-to-end translation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LearnDuration, err = m.Float64Histogram("adaptran.learn.duration",
		metric.WithDescription("End-to-end learning-event latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("adaptran.extract.duration",
		metric.WithDescription("Grammar extraction latency on cache misses."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("adaptran.align.duration",
		metric.WithDescription("Forced-alignment latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Commands, err = m.Int64Counter("adaptran.commands",
		metric.WithDescription("Total protocol commands by verb and status."),
	); err != nil {
		return nil, err
	}
	if met.GrammarLookups, err = m.Int64Counter("adaptran.grammar.lookups",
		metric.WithDescription("Grammar cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.GrammarEvictions, err = m.Int64Counter("adaptran.grammar.evictions",
		metric.WithDescription("Grammar cache evictions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveContexts, err = m.Int64UpDownCounter("adaptran.active_contexts",
		metric.WithDescription("Number of live translation contexts."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordCommand is a convenience method that records one protocol command
// with the standard attribute set.
func (m *Metrics) RecordCommand(ctx context.Context, verb, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("verb", verb),
			attribute.String("status", status),
		),
	)
}

// RecordGrammarLookup is a convenience method that records one grammar
// cache lookup.
func (m *Metrics) RecordGrammarLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GrammarLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
