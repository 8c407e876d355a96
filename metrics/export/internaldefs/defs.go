package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that reached an authenticated state."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Logins that failed."},
	{ID: goSession.MetricTwoFactorRequired, Name: "gosession_two_factor_required_total", Help: "Logins held for a second factor."},
	{ID: goSession.MetricTwoFactorSuccess, Name: "gosession_two_factor_success_total", Help: "Accepted verification codes."},
	{ID: goSession.MetricTwoFactorFailure, Name: "gosession_two_factor_failure_total", Help: "Rejected verification codes."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Backend refresh calls that rotated the token pair."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refresh attempts that failed."},
	{ID: goSession.MetricRefreshShared, Name: "gosession_refresh_shared_total", Help: "Callers served by a refresh already in flight."},
	{ID: goSession.MetricRefreshReused, Name: "gosession_refresh_reused_total", Help: "Reactive refreshes skipped because the token was already rotated."},
	{ID: goSession.MetricRefreshProactive, Name: "gosession_refresh_proactive_total", Help: "Refreshes started by the timer."},
	{ID: goSession.MetricRefreshReactive, Name: "gosession_refresh_reactive_total", Help: "Refreshes requested after a 401 or a missing token."},
	{ID: goSession.MetricRequestUnauthorized, Name: "gosession_request_unauthorized_total", Help: "401 responses to authenticated requests."},
	{ID: goSession.MetricRequestRetried, Name: "gosession_request_retried_total", Help: "Requests replayed after a refresh."},
	{ID: goSession.MetricForcedLogout, Name: "gosession_forced_logout_total", Help: "Sessions ended by a failed refresh."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "User-initiated logouts."},
	{ID: goSession.MetricLogoutRevokeFailure, Name: "gosession_logout_revoke_failure_total", Help: "Backend logout calls that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRequestLatency, Name: "gosession_request_latency_seconds", Help: "Authenticated request latency, including any refresh and retry."},
}

// DroppedName counts transitions lost to a full notification queue.
const (
	DroppedName = "gosession_transitions_dropped_total"
	DroppedHelp = "Transitions dropped because the notification queue was full."
)

// HistogramUpperBounds are the finite bucket bounds in seconds; the last bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
