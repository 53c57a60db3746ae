package internaldefs

import (
	goSignup "github.com/MrEthical07/goSignup"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSignup.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goSignup.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSignup.MetricRegistrationStarted, Name: "signup_registration_started_total", Help: "Registration sessions opened."},
	{ID: goSignup.MetricRegistrationStartFailed, Name: "signup_registration_start_failed_total", Help: "Registration starts rejected or failed."},
	{ID: goSignup.MetricRegistrationCodeInvalid, Name: "signup_registration_code_invalid_total", Help: "Code submissions that did not match."},
	{ID: goSignup.MetricRegistrationExpired, Name: "signup_registration_expired_total", Help: "Code submissions against expired, consumed or unknown sessions."},
	{ID: goSignup.MetricRegistrationAttemptsExceeded, Name: "signup_registration_attempts_exceeded_total", Help: "Sessions deleted after the last allowed wrong code."},
	{ID: goSignup.MetricRegistrationCompleted, Name: "signup_registration_completed_total", Help: "Accounts created from a verified session."},
	{ID: goSignup.MetricRegistrationConflict, Name: "signup_registration_conflict_total", Help: "Verified sessions rejected by the account store as duplicates."},
	{ID: goSignup.MetricRegistrationUncertain, Name: "signup_registration_uncertain_total", Help: "Account writes with an unknown result."},
	{ID: goSignup.MetricRegistrationRetryLater, Name: "signup_registration_retry_later_total", Help: "Account writes that failed transiently and restored the session."},
	{ID: goSignup.MetricRegistrationReconciled, Name: "signup_registration_reconciled_total", Help: "Uncertain sessions resolved by reconciliation."},
	{ID: goSignup.MetricResendSent, Name: "signup_resend_sent_total", Help: "Codes rotated and re-sent."},
	{ID: goSignup.MetricResendRejected, Name: "signup_resend_rejected_total", Help: "Resend requests refused by cooldown or limit."},
	{ID: goSignup.MetricRateLimitHit, Name: "signup_rate_limit_hit_total", Help: "Requests denied by identifier or IP throttles."},
	{ID: goSignup.MetricNotificationEnqueueFailed, Name: "signup_notification_enqueue_failed_total", Help: "Notifications that could not be queued."},
	{ID: goSignup.MetricNotificationDelivered, Name: "signup_notification_delivered_total", Help: "Notifications accepted by a deliverer."},
	{ID: goSignup.MetricNotificationFailed, Name: "signup_notification_failed_total", Help: "Notifications that exhausted their retries."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSignup.MetricMaterializeLatency, Name: "signup_materialize_latency_seconds", Help: "Account materializer call latency."},
}

// AuditDroppedName is the counter for audit events lost to a full buffer.
const AuditDroppedName = "signup_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// publish buckets as separate instruments.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-filling
// missing buckets.
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
