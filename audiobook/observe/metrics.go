// Package observe holds the OpenTelemetry metric instruments of the
// application. Tests should use NewMetrics with their own MeterProvider; the
// CLI uses DefaultMetrics on the global provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/makeitchaccha/audiobook"

// Metrics holds all metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// SynthesisDuration tracks the time to produce one unit, S2S included.
	// Attributes: engine.
	SynthesisDuration metric.Float64Histogram

	// UnitsSynthesized counts units whose audio was written. Attributes: engine.
	UnitsSynthesized metric.Int64Counter

	// UnitsFailed counts units skipped after an engine error. Attributes: engine, kind.
	UnitsFailed metric.Int64Counter

	// EngineLoads counts model loads, reuses excluded. Attributes: engine, kind.
	EngineLoads metric.Int64Counter

	// ExportDuration tracks whole export runs. Attributes: format.
	ExportDuration metric.Float64Histogram
}

// synthesisBuckets are in seconds; local models take seconds per sentence.
var synthesisBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("audiobook.synthesis.duration",
		metric.WithDescription("Time to synthesize one unit."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(synthesisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UnitsSynthesized, err = m.Int64Counter("audiobook.units.synthesized",
		metric.WithDescription("Units whose audio was generated, by engine."),
	); err != nil {
		return nil, err
	}
	if met.UnitsFailed, err = m.Int64Counter("audiobook.units.failed",
		metric.WithDescription("Units skipped after an engine failure, by engine and kind."),
	); err != nil {
		return nil, err
	}
	if met.EngineLoads, err = m.Int64Counter("audiobook.engine.loads",
		metric.WithDescription("Engine model loads by engine and kind."),
	); err != nil {
		return nil, err
	}
	if met.ExportDuration, err = m.Float64Histogram("audiobook.export.duration",
		metric.WithDescription("Time to export a project."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance on the global provider.
// Panics if instrument creation fails, which the global provider never does.
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

func (m *Metrics) RecordSynthesis(ctx context.Context, engine string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	m.SynthesisDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.UnitsSynthesized.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordFailure(ctx context.Context, engine, kind string) {
	m.UnitsFailed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("kind", kind),
		),
	)
}

func (m *Metrics) RecordEngineLoad(ctx context.Context, engine, kind string) {
	m.EngineLoads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("kind", kind),
		),
	)
}

func (m *Metrics) RecordExport(ctx context.Context, format string, elapsed time.Duration) {
	m.ExportDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("format", format)),
	)
}
