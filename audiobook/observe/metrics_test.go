package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordSynthesis(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSynthesis(ctx, "google", 1500*time.Millisecond)
	m.RecordSynthesis(ctx, "google", 500*time.Millisecond)
	m.RecordSynthesis(ctx, "command", time.Second)

	rm := collect(t, reader)

	hist := findMetric(rm, "audiobook.synthesis.duration")
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 2)

	counter := findMetric(rm, "audiobook.units.synthesized")
	require.NotNil(t, counter)
	sum, ok := counter.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	total := int64(0)
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value("engine"); ok && v.AsString() == "google" {
			assert.Equal(t, int64(2), dp.Value)
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestRecordFailureAndLoads(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFailure(ctx, "command", "tts")
	m.RecordEngineLoad(ctx, "command", "tts")
	m.RecordEngineLoad(ctx, "rvc", "s2s")
	m.RecordExport(ctx, "mp3", 2*time.Second)

	rm := collect(t, reader)
	for _, name := range []string{"audiobook.units.failed", "audiobook.engine.loads", "audiobook.export.duration"} {
		assert.NotNil(t, findMetric(rm, name), name)
	}

	loads := findMetric(rm, "audiobook.engine.loads").Data.(metricdata.Sum[int64])
	assert.Len(t, loads.DataPoints, 2)
}

func TestProviderSnapshot(t *testing.T) {
	p := InitProvider()
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider)
	require.NoError(t, err)
	m.RecordEngineLoad(context.Background(), "command", "tts")
	m.RecordEngineLoad(context.Background(), "command", "tts")

	samples, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, samples, Sample{Name: "audiobook.engine.loads", Attributes: "engine=command,kind=tts", Value: "2"})
}

func TestDefaultMetrics(t *testing.T) {
	assert.Same(t, DefaultMetrics(), DefaultMetrics())
}
