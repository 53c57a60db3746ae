package goSignup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSignup/internal/audit"
	"github.com/MrEthical07/goSignup/internal/dispatch"
	"github.com/MrEthical07/goSignup/internal/limiters"
	"github.com/MrEthical07/goSignup/internal/stores"
	"github.com/MrEthical07/goSignup/link"
)

// Engine runs OTP-gated registrations. It holds no per-session state in
// memory: every session lives in Redis, so any number of Engine instances
// may serve the same sessions. Methods are safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger

	store        *stores.RegistrationStore
	limiter      *limiters.RegistrationLimiter
	dispatcher   *dispatch.Dispatcher
	links        *link.Manager
	hasher       CredentialHasher
	materializer AccountMaterializer
	reconciler   AccountReconciler

	audit   *audit.Dispatcher
	metrics *Metrics
}

// NotificationStats reports dispatcher counters.
type NotificationStats struct {
	Submitted uint64
	Delivered uint64
	Retried   uint64
	Failed    uint64
	Dropped   uint64
}

// Close stops accepting notifications and waits for queued ones until ctx
// ends or Dispatch.ShutdownTimeout elapses, then stops the audit worker.
func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}

	var err error
	if e.dispatcher != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout := e.config.Dispatch.ShutdownTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err = e.dispatcher.Close(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("notification queue not drained before shutdown",
				slog.Uint64("failed", e.dispatcher.Stats().Failed),
			)
		}
	}
	if e.audit != nil {
		e.audit.Close()
	}
	return err
}

// AuditDropped returns how many audit events were dropped because the
// audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) NotificationStats() NotificationStats {
	if e == nil || e.dispatcher == nil {
		return NotificationStats{}
	}
	s := e.dispatcher.Stats()
	return NotificationStats{
		Submitted: s.Submitted,
		Delivered: s.Delivered,
		Retried:   s.Retried,
		Failed:    s.Failed,
		Dropped:   s.Dropped,
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}
