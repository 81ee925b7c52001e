package internaldefs

import (
	authcove "github.com/authcove/authcove"
)

// CounterDef ties an engine metric ID to its stable exported name.
type CounterDef struct {
	ID   authcove.MetricID
	Name string
	Help string
}

// HistogramDef ties an engine histogram ID to its stable exported name.
type HistogramDef struct {
	ID   authcove.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter both exporters publish. Order is the
// render order of the Prometheus text output.
var CounterDefs = []CounterDef{
	{ID: authcove.MetricRegisterSuccess, Name: "authcove_register_success_total", Help: "Successful registrations."},
	{ID: authcove.MetricRegisterFailure, Name: "authcove_register_failure_total", Help: "Failed registration attempts."},
	{ID: authcove.MetricRegisterDuplicate, Name: "authcove_register_duplicate_total", Help: "Registration attempts rejected as duplicate."},
	{ID: authcove.MetricLoginSuccess, Name: "authcove_login_success_total", Help: "Successful login attempts."},
	{ID: authcove.MetricLoginFailure, Name: "authcove_login_failure_total", Help: "Failed login attempts."},
	{ID: authcove.MetricRefreshSuccess, Name: "authcove_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcove.MetricRefreshFailure, Name: "authcove_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcove.MetricRefreshReuseDetected, Name: "authcove_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authcove.MetricExternalLoginSuccess, Name: "authcove_external_login_success_total", Help: "Successful external logins."},
	{ID: authcove.MetricExternalLoginFailure, Name: "authcove_external_login_failure_total", Help: "Failed external login attempts."},
	{ID: authcove.MetricExternalIdentityLinked, Name: "authcove_external_identity_linked_total", Help: "External identities linked to accounts."},
	{ID: authcove.MetricSessionCreated, Name: "authcove_session_created_total", Help: "Created sessions."},
	{ID: authcove.MetricSessionInvalidated, Name: "authcove_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcove.MetricLogout, Name: "authcove_logout_total", Help: "Single-session logout operations."},
	{ID: authcove.MetricLogoutAll, Name: "authcove_logout_all_total", Help: "Logout-all operations."},
}

// HistogramDefs lists every histogram both exporters publish.
var HistogramDefs = []HistogramDef{
	{ID: authcove.MetricValidateLatency, Name: "authcove_validate_latency_seconds", Help: "ValidateAccess latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, as rendered in
// Prometheus le labels.
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

// HistogramBoundSuffix are the bound spellings legal in OTel instrument
// names, index-aligned with HistogramBounds.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
