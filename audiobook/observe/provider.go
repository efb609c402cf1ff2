package observe

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an in-process meter provider whose readings the CLI prints at
// the end of a command.
type Provider struct {
	*sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// InitProvider installs a ManualReader backed provider as the global one.
func InitProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return &Provider{MeterProvider: mp, reader: reader}
}

// Sample is one data point flattened for display.
type Sample struct {
	Name       string
	Attributes string
	Value      string
}

// Snapshot collects the current readings, sorted by name then attributes.
func (p *Provider) Snapshot(ctx context.Context) ([]Sample, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var samples []Sample
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes.ToSlice()), Value: fmt.Sprint(dp.Value)})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					value := fmt.Sprintf("count=%d sum=%.3f%s", dp.Count, dp.Sum, m.Unit)
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes.ToSlice()), Value: value})
				}
			}
		}
	}

	slices.SortFunc(samples, func(a, b Sample) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Attributes, b.Attributes)
	})
	return samples, nil
}

func formatAttributes(kvs []attribute.KeyValue) string {
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = string(kv.Key) + "=" + kv.Value.Emit()
	}
	return strings.Join(parts, ",")
}
