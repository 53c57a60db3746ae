package goSignup

import (
	internalmetrics "github.com/MrEthical07/goSignup/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID = internalmetrics.MetricID

// Metrics holds the engine counters. A nil *Metrics is a valid, disabled
// instance.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricRegistrationStarted          = internalmetrics.MetricRegistrationStarted
	MetricRegistrationStartFailed      = internalmetrics.MetricRegistrationStartFailed
	MetricRegistrationCodeInvalid      = internalmetrics.MetricRegistrationCodeInvalid
	MetricRegistrationExpired          = internalmetrics.MetricRegistrationExpired
	MetricRegistrationAttemptsExceeded = internalmetrics.MetricRegistrationAttemptsExceeded
	MetricRegistrationCompleted        = internalmetrics.MetricRegistrationCompleted
	MetricRegistrationConflict         = internalmetrics.MetricRegistrationConflict
	MetricRegistrationUncertain        = internalmetrics.MetricRegistrationUncertain
	MetricRegistrationRetryLater       = internalmetrics.MetricRegistrationRetryLater
	MetricRegistrationReconciled       = internalmetrics.MetricRegistrationReconciled
	MetricResendSent                   = internalmetrics.MetricResendSent
	MetricResendRejected               = internalmetrics.MetricResendRejected
	MetricRateLimitHit                 = internalmetrics.MetricRateLimitHit
	MetricNotificationEnqueueFailed    = internalmetrics.MetricNotificationEnqueueFailed
	MetricNotificationDelivered        = internalmetrics.MetricNotificationDelivered
	MetricNotificationFailed           = internalmetrics.MetricNotificationFailed
	// MetricMaterializeLatency is a histogram of AccountMaterializer calls.
	MetricMaterializeLatency = internalmetrics.MetricMaterializeLatency
)

// NewMetrics creates a metrics set. Latency histograms require Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(cfg.Enabled, cfg.EnableLatencyHistograms)
}
