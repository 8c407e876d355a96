package otel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:   make(map[goSession.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goSession.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) TransitionsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", m.Name, m.Data)
	require.Len(t, sum.DataPoints, 1)
	return sum.DataPoints[0].Value
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricRefreshSuccess: 3,
				goSession.MetricForcedLogout:   1,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 4,
	}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	got := collect(t, reader)
	assert.EqualValues(t, 3, sumValue(t, got["gosession_refresh_success_total"]))
	assert.EqualValues(t, 1, sumValue(t, got["gosession_forced_logout_total"]))
	assert.EqualValues(t, 4, sumValue(t, got["gosession_transitions_dropped_total"]))

	buckets, ok := got["gosession_request_latency_seconds_bucket"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, buckets.DataPoints, 8)
	byLE := map[string]int64{}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value("le")
		byLE[le.AsString()] = dp.Value
	}
	assert.EqualValues(t, 1, byLE["0.005"])
	assert.EqualValues(t, 8, byLE["+Inf"])

	count, ok := got["gosession_request_latency_seconds_count"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, count.DataPoints, 1)
	assert.EqualValues(t, 8, count.DataPoints[0].Value)
}

func TestExporterObservesNothingWhenDisabled(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: goSession.MetricsSnapshot{
		Counters:   map[goSession.MetricID]uint64{},
		Histograms: map[goSession.MetricID][]uint64{},
	}}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	for name, m := range collect(t, reader) {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			assert.Empty(t, data.DataPoints, name)
		case metricdata.Gauge[int64]:
			assert.Empty(t, data.DataPoints, name)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()

	_, err := NewExporterFromSource(provider.Meter("gosession-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)

	_, err = NewExporter(provider.Meter("gosession-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: goSession.MetricsSnapshot{
		Counters:   map[goSession.MetricID]uint64{goSession.MetricLoginSuccess: 1},
		Histograms: map[goSession.MetricID][]uint64{},
	}}

	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goSession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(t.Context(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterCloseNil(t *testing.T) {
	var e *Exporter
	assert.NoError(t, e.Close())
}
