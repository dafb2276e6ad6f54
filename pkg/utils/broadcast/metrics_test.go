package broadcast

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gotest.tools/v3/assert"
)

// gaugePoints counts the gauge data points reported for the named server.
func gaugePoints(t *testing.T, reader sdkmetric.Reader, name string) int {
	t.Helper()
	var rm metricdata.ResourceMetrics
	assert.NilError(t, reader.Collect(context.Background(), &rm))
	ret := 0
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			g, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			for _, dp := range g.DataPoints {
				if v, ok := dp.Attributes.Value("name"); ok && v.AsString() == name {
					ret++
				}
			}
		}
	}
	return ret
}

func TestBroadcast_metricsUnregisteredOnClose(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	source := make(chan int)
	b := NewBroadcastServer("metrics", source, WithMeterProvider[int](mp))
	assert.Equal(t, gaugePoints(t, reader, "metrics"), 4)

	b.Close()
	assert.Equal(t, gaugePoints(t, reader, "metrics"), 0)
	// second close is harmless
	b.Close()
}
