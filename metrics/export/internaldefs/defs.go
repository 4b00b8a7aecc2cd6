package internaldefs

import (
	"github.com/MrEthical07/authsession"
)

// CounterDef names one authsession counter.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// HistogramDef names one authsession histogram.
type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authsession_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: authsession.MetricSessionInitAuthenticated, Name: "authsession_session_init_authenticated_total", Help: "Session resolutions that restored a user."},
	{ID: authsession.MetricSessionInitAnonymous, Name: "authsession_session_init_anonymous_total", Help: "Session resolutions with no stored token."},
	{ID: authsession.MetricSessionStale, Name: "authsession_session_stale_total", Help: "Stored tokens cleared after a failed profile fetch."},
	{ID: authsession.MetricSessionLogin, Name: "authsession_session_login_total", Help: "Session sign-ins."},
	{ID: authsession.MetricSessionLogout, Name: "authsession_session_logout_total", Help: "Session sign-outs."},
	{ID: authsession.MetricSessionRefresh, Name: "authsession_session_refresh_total", Help: "On-demand session refreshes."},
	{ID: authsession.MetricCredentialStoreFailure, Name: "authsession_credential_store_failure_total", Help: "Credential store I/O failures."},
	{ID: authsession.MetricEmailVerifyStarted, Name: "authsession_email_verify_started_total", Help: "Email verification attempts started."},
	{ID: authsession.MetricEmailVerifySuccess, Name: "authsession_email_verify_success_total", Help: "Successful email verifications."},
	{ID: authsession.MetricEmailVerifyFailure, Name: "authsession_email_verify_failure_total", Help: "Failed email verifications."},
	{ID: authsession.MetricLoginVerifyStarted, Name: "authsession_login_verify_started_total", Help: "Login verification attempts started."},
	{ID: authsession.MetricLoginVerifySuccess, Name: "authsession_login_verify_success_total", Help: "Successful login verifications."},
	{ID: authsession.MetricLoginVerifyFailure, Name: "authsession_login_verify_failure_total", Help: "Failed login verifications."},
	{ID: authsession.MetricVerifyMissingToken, Name: "authsession_verify_missing_token_total", Help: "Verification links opened without a token."},
	{ID: authsession.MetricTransportFailure, Name: "authsession_transport_failure_total", Help: "Service calls that failed before a usable reply."},
	{ID: authsession.MetricRedirectFired, Name: "authsession_redirect_fired_total", Help: "Countdown redirects performed."},
	{ID: authsession.MetricAttemptDiscarded, Name: "authsession_attempt_discarded_total", Help: "Verification replies discarded after teardown."},
	{ID: authsession.MetricPasswordLoginSuccess, Name: "authsession_password_login_success_total", Help: "Password logins that signed in."},
	{ID: authsession.MetricPasswordLoginVerificationRequired, Name: "authsession_password_login_verification_required_total", Help: "Password logins waiting for email confirmation."},
	{ID: authsession.MetricPasswordLoginFailure, Name: "authsession_password_login_failure_total", Help: "Failed password logins."},
}

var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricProfileLatency, Name: "authsession_profile_latency_seconds", Help: "Profile fetch latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the core latency buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// NormalizeBuckets copies up to len(HistogramBounds) raw buckets; missing
// ones are zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals both
// exposition formats publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	out := raw
	for i := 1; i < len(out); i++ {
		out[i] += out[i-1]
	}
	return out
}
