package goSession

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/internal/fakebackend"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricRequestLatency, time.Millisecond)

	assert.Zero(t, m.Value(MetricLoginSuccess))
	assert.False(t, m.LatencyEnabled())
	snap := m.Snapshot()
	assert.Empty(t, snap.Counters)
	assert.Empty(t, snap.Histograms)
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricRequestLatency, time.Millisecond)

	assert.Zero(t, m.Value(MetricLogout))
	assert.False(t, m.Enabled())
	assert.Empty(t, m.Snapshot().Counters)
}

func TestMetricsIgnoresUnknownID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 7)
	assert.Zero(t, m.Value(metricIDCount))
}

func TestMetricsConcurrentSharedRefreshCount(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const waiters, rounds = 32, 4000
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				m.Inc(MetricRefreshShared)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(waiters*rounds), m.Value(MetricRefreshShared))
}

func TestMetricsLatencyBuckets(t *testing.T) {
	tests := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{3 * time.Second, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.bucket, bucketIndex(tt.d), "duration %s", tt.d)
	}
}

func TestMetricsHistogramOnlyForRequestLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, d := range []time.Duration{time.Millisecond, 40 * time.Millisecond, time.Second} {
		m.Observe(MetricRequestLatency, d)
	}
	m.Observe(MetricLogout, time.Millisecond)

	snap := m.Snapshot()
	require.Len(t, snap.Histograms, 1)
	assert.Equal(t, []uint64{1, 0, 0, 1, 0, 0, 0, 1}, snap.Histograms[MetricRequestLatency])
	assert.NotContains(t, snap.Counters, MetricRequestLatency)
	assert.Len(t, snap.Counters, int(metricIDCount)-1)
}

func TestMetricsLatencyRequiresOptIn(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRequestLatency, time.Millisecond)

	assert.NotContains(t, m.Snapshot().Histograms, MetricRequestLatency)
}

func TestOrchestratorCountsSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.backend.ExpireAccessTokens()
	require.NoError(t, h.o.MakeAuthenticatedRequest(t.Context(), fakebackend.PathResource, RequestOptions{}, nil))
	h.o.Logout(t.Context())

	snap := h.o.MetricsSnapshot()
	assert.EqualValues(t, 1, snap.Counters[MetricLoginSuccess])
	assert.EqualValues(t, 1, snap.Counters[MetricRequestUnauthorized])
	assert.EqualValues(t, 1, snap.Counters[MetricRefreshReactive])
	assert.EqualValues(t, 1, snap.Counters[MetricRefreshSuccess])
	assert.EqualValues(t, 1, snap.Counters[MetricRequestRetried])
	assert.EqualValues(t, 1, snap.Counters[MetricLogout])
	assert.Zero(t, snap.Counters[MetricForcedLogout])

	var requests uint64
	for _, n := range snap.Histograms[MetricRequestLatency] {
		requests += n
	}
	assert.EqualValues(t, 1, requests)
}
