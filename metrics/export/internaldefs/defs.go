package internaldefs

import (
	"github.com/MrEthical07/adminauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: adminauth.MetricVerifyAdminSuccess, Name: "adminauth_verify_admin_success_total", Help: "Tokens accepted on the administrative path."},
	{ID: adminauth.MetricVerifyAdminFailure, Name: "adminauth_verify_admin_failure_total", Help: "Tokens rejected on the administrative path."},
	{ID: adminauth.MetricVerifyExternalSuccess, Name: "adminauth_verify_external_success_total", Help: "Tokens accepted by the external identity provider."},
	{ID: adminauth.MetricVerifyExternalFailure, Name: "adminauth_verify_external_failure_total", Help: "Tokens rejected by the external identity provider."},
	{ID: adminauth.MetricVerifyUnauthenticated, Name: "adminauth_verify_unauthenticated_total", Help: "Tokens no verification path accepted."},
	{ID: adminauth.MetricVerifyPreviousSecret, Name: "adminauth_verify_previous_secret_total", Help: "Tokens accepted under the previous signing secret."},
	{ID: adminauth.MetricRevokedHit, Name: "adminauth_revoked_hit_total", Help: "Tokens rejected because they were denylisted."},
	{ID: adminauth.MetricRevocationStoreIncident, Name: "adminauth_revocation_store_incident_total", Help: "Denylist lookups that failed to reach the store."},
	{ID: adminauth.MetricRateLimitHit, Name: "adminauth_rate_limit_hit_total", Help: "Requests refused by failed-authentication throttling."},
	{ID: adminauth.MetricRotationSuccess, Name: "adminauth_rotation_success_total", Help: "Completed signing-secret rotations."},
	{ID: adminauth.MetricRotationFailure, Name: "adminauth_rotation_failure_total", Help: "Failed signing-secret rotations."},
	{ID: adminauth.MetricSecretRetired, Name: "adminauth_secret_retired_total", Help: "Previous secrets retired after the grace period."},
	{ID: adminauth.MetricTokensIssued, Name: "adminauth_tokens_issued_total", Help: "Issued access and refresh token pairs."},
	{ID: adminauth.MetricRefreshSuccess, Name: "adminauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: adminauth.MetricRefreshFailure, Name: "adminauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: adminauth.MetricLogout, Name: "adminauth_logout_total", Help: "Logout operations."},
	{ID: adminauth.MetricBlacklisted, Name: "adminauth_blacklisted_total", Help: "Tokens denylisted by an operator."},
	{ID: adminauth.MetricBlacklistCleaned, Name: "adminauth_blacklist_cleaned_total", Help: "Expired denylist entries pruned."},
	{ID: adminauth.MetricAuthzAllow, Name: "adminauth_authz_allow_total", Help: "Authorization checks that allowed."},
	{ID: adminauth.MetricAuthzDeny, Name: "adminauth_authz_deny_total", Help: "Authorization checks that denied."},
	{ID: adminauth.MetricLastSeenDropped, Name: "adminauth_last_seen_dropped_total", Help: "Last-seen updates dropped under backpressure."},
	{ID: adminauth.MetricRoleTableReloaded, Name: "adminauth_role_table_reloaded_total", Help: "Role table reloads from file."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: adminauth.MetricVerifyLatency, Name: "adminauth_verify_latency_seconds", Help: "Authenticate latency histogram."},
}

// AuditDroppedName is the counter for audit events dropped by the dispatcher.
const AuditDroppedName = "adminauth_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramBounds are the upper bounds of the eight engine buckets, as exposition labels.
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

// HistogramUpperBounds are the finite bucket bounds in seconds. The last engine
// bucket is +Inf and has no entry.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix is HistogramBounds rendered safe for instrument names.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling or truncating.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
