package internaldefs

import (
	sessionauth "github.com/quantfolio/sessionauth"
)

// CounterDef binds a counter MetricID to its exported name and help text.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed render order.
var CounterDefs = []CounterDef{
	{ID: sessionauth.MetricLoginSuccess, Name: "sessionauth_login_success_total", Help: "Successful login attempts."},
	{ID: sessionauth.MetricLoginFailure, Name: "sessionauth_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionauth.MetricLoginRateLimited, Name: "sessionauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: sessionauth.MetricRegisterSuccess, Name: "sessionauth_register_success_total", Help: "Successful registrations."},
	{ID: sessionauth.MetricRegisterDuplicate, Name: "sessionauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: sessionauth.MetricRegisterFailure, Name: "sessionauth_register_failure_total", Help: "Failed registrations."},
	{ID: sessionauth.MetricRefreshSuccess, Name: "sessionauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessionauth.MetricRefreshFailure, Name: "sessionauth_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: sessionauth.MetricRefreshReuseDetected, Name: "sessionauth_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: sessionauth.MetricRefreshRateLimited, Name: "sessionauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: sessionauth.MetricLogout, Name: "sessionauth_logout_total", Help: "Single-session logout operations."},
	{ID: sessionauth.MetricLogoutAll, Name: "sessionauth_logout_all_total", Help: "Logout-all operations."},
	{ID: sessionauth.MetricSessionCreated, Name: "sessionauth_session_created_total", Help: "Created sessions."},
	{ID: sessionauth.MetricSessionInvalidated, Name: "sessionauth_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: sessionauth.MetricRateLimitHit, Name: "sessionauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every exported histogram in a fixed render order.
var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricValidateLatency, Name: "sessionauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bucket bounds rendered as Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds using OTel-safe name suffixes.
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

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into a cumulative series.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
