package internaldefs

import (
	"github.com/MrEthical07/accountguard"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   accountguard.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   accountguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: accountguard.MetricLoginSuccess, Name: "accountguard_login_success_total", Help: "Successful logins."},
	{ID: accountguard.MetricLoginFailure, Name: "accountguard_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: accountguard.MetricLoginBlockedLocked, Name: "accountguard_login_blocked_locked_total", Help: "Logins rejected because the account was locked."},
	{ID: accountguard.MetricLoginBlockedInactive, Name: "accountguard_login_blocked_inactive_total", Help: "Logins rejected because the account was deactivated."},
	{ID: accountguard.MetricAccountLocked, Name: "accountguard_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: accountguard.MetricAccountUnlocked, Name: "accountguard_account_unlocked_total", Help: "Accounts unlocked by an administrator."},
	{ID: accountguard.MetricRefreshSuccess, Name: "accountguard_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: accountguard.MetricRefreshFailure, Name: "accountguard_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: accountguard.MetricLogout, Name: "accountguard_logout_total", Help: "Logouts."},
	{ID: accountguard.MetricPasswordChangeSuccess, Name: "accountguard_password_change_success_total", Help: "Successful password changes."},
	{ID: accountguard.MetricPasswordChangeFailure, Name: "accountguard_password_change_failure_total", Help: "Rejected password changes."},
	{ID: accountguard.MetricPasswordResetRequest, Name: "accountguard_password_reset_request_total", Help: "Password reset requests."},
	{ID: accountguard.MetricPasswordResetEmailFailure, Name: "accountguard_password_reset_email_failure_total", Help: "Reset emails the mailer failed to send."},
	{ID: accountguard.MetricPasswordResetSuccess, Name: "accountguard_password_reset_success_total", Help: "Completed password resets."},
	{ID: accountguard.MetricPasswordResetInvalidToken, Name: "accountguard_password_reset_invalid_token_total", Help: "Reset attempts with an invalid or expired token."},
	{ID: accountguard.MetricPasswordRehash, Name: "accountguard_password_rehash_total", Help: "Stored hashes upgraded on login."},
	{ID: accountguard.MetricRateLimitHit, Name: "accountguard_rate_limit_hit_total", Help: "Requests denied by a rate limit."},
	{ID: accountguard.MetricConcurrentRetry, Name: "accountguard_concurrent_retry_total", Help: "Account writes retried after a version conflict."},
	{ID: accountguard.MetricBackendFailure, Name: "accountguard_backend_failure_total", Help: "Operations failed by a storage or limiter backend."},
}

var HistogramDefs = []HistogramDef{
	{ID: accountguard.MetricLoginLatency, Name: "accountguard_login_latency_seconds", Help: "Login latency."},
	{ID: accountguard.MetricPasswordResetLatency, Name: "accountguard_password_reset_latency_seconds", Help: "Password reset request latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels are the upper bounds as exposition labels, +Inf last.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// AuditDroppedName and AuditFailedName count audit events that never reached
// the sink.
const (
	AuditDroppedName = "accountguard_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped by a full async buffer."
	AuditFailedName  = "accountguard_audit_failed_total"
	AuditFailedHelp  = "Audit events the sink rejected."
)

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
