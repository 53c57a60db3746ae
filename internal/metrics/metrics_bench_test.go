package metrics

import (
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := New(true, false)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRegistrationStarted)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := New(false, false)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRegistrationStarted)
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := New(true, false)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricRegistrationCodeInvalid)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := New(true, true)
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricMaterializeLatency, d)
		}
	})
}

type packedBenchmarkMetrics struct {
	counters [MetricIDCount]uint64
}

func (m *packedBenchmarkMetrics) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

// The counters hit together on the verify path.
var mixedHotMetricIDs = [...]MetricID{
	MetricRegistrationStarted,
	MetricRegistrationCodeInvalid,
	MetricRegistrationCompleted,
	MetricRegistrationExpired,
	MetricResendSent,
	MetricNotificationDelivered,
	MetricRateLimitHit,
	MetricRegistrationAttemptsExceeded,
}

func BenchmarkMetricsIncMixedParallelPaddedRoundRobin(b *testing.B) {
	m := New(true, false)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(mixedHotMetricIDs[idx])
			idx++
			if idx == len(mixedHotMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsIncMixedParallelPackedRoundRobin(b *testing.B) {
	m := &packedBenchmarkMetrics{}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(mixedHotMetricIDs[idx])
			idx++
			if idx == len(mixedHotMetricIDs) {
				idx = 0
			}
		}
	})
}
