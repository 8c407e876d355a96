package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in [Metrics].
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that reached LOGIN_SUCCESS.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins that ended in LOGIN_FAILURE.
	MetricLoginFailure
	// MetricTwoFactorRequired counts logins held at the second factor.
	MetricTwoFactorRequired
	// MetricTwoFactorSuccess counts successful OTP verifications.
	MetricTwoFactorSuccess
	// MetricTwoFactorFailure counts rejected OTP verifications.
	MetricTwoFactorFailure
	// MetricRefreshSuccess counts backend refresh calls that rotated the pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts backend refresh calls that failed.
	MetricRefreshFailure
	// MetricRefreshShared counts callers served by a refresh another caller started.
	MetricRefreshShared
	// MetricRefreshReused counts reactive refreshes skipped because the token had
	// already been rotated.
	MetricRefreshReused
	// MetricRefreshProactive counts refreshes started by the timer.
	MetricRefreshProactive
	// MetricRefreshReactive counts refreshes started by a 401 or a missing token.
	MetricRefreshReactive
	// MetricRequestUnauthorized counts 401 responses to authenticated requests.
	MetricRequestUnauthorized
	// MetricRequestRetried counts requests replayed after a refresh.
	MetricRequestRetried
	// MetricForcedLogout counts LOGOUT transitions caused by a failed refresh.
	MetricForcedLogout
	// MetricLogout counts user-initiated logouts.
	MetricLogout
	// MetricLogoutRevokeFailure counts backend logout calls that failed.
	MetricLogoutRevokeFailure
	// MetricRequestLatency is the authenticated request latency histogram.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics ignores
// writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a [Metrics] configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Only [MetricRequestLatency] is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

// latencyBounds are the inclusive upper bounds of every bucket but the last.
var latencyBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

func bucketIndex(d time.Duration) int {
	d = d.Truncate(time.Millisecond)
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
