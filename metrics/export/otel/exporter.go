package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const notificationJobsName = "signup_notification_jobs_total"

type metricsSource interface {
	MetricsSnapshot() goSignup.MetricsSnapshot
	AuditDropped() uint64
	NotificationStats() goSignup.NotificationStats
}

type lifecycleCounter struct {
	id         goSignup.MetricID
	instrument metric.Int64ObservableCounter
}

type latencyGauges struct {
	id      goSignup.MetricID
	buckets []metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

var notificationStates = [...]attribute.KeyValue{
	attribute.String("state", "submitted"),
	attribute.String("state", "delivered"),
	attribute.String("state", "retried"),
	attribute.String("state", "failed"),
	attribute.String("state", "dropped"),
}

// Exporter observes a registration engine on every collection.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	counters      []lifecycleCounter
	latencies     []latencyGauges
	auditDropped  metric.Int64ObservableCounter
	notifications metric.Int64ObservableCounter
}

func NewExporter(meter metric.Meter, engine *goSignup.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource creates the instruments on meter and registers
// the collection callback.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("registration counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, lifecycleCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		g := latencyGauges{id: def.ID}
		for _, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name,
				metric.WithDescription(def.Help+" Cumulative bucket count."))
			if err != nil {
				return nil, fmt.Errorf("latency bucket %s: %w", name, err)
			}
			g.buckets = append(g.buckets, ins)
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		count, err := meter.Int64ObservableGauge(countName,
			metric.WithDescription(def.Help+" Total calls observed."))
		if err != nil {
			return nil, fmt.Errorf("latency count %s: %w", countName, err)
		}
		g.count = count
		observables = append(observables, count)
		e.latencies = append(e.latencies, g)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Registration audit events lost to a full audit buffer."))
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	e.notifications, err = meter.Int64ObservableCounter(notificationJobsName,
		metric.WithDescription("Verification code delivery jobs by state."))
	if err != nil {
		return nil, fmt.Errorf("notification jobs counter: %w", err)
	}
	observables = append(observables, e.auditDropped, e.notifications)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	for _, g := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[g.id]))
		for i, ins := range g.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(g.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	stats := e.source.NotificationStats()
	for i, v := range [...]uint64{stats.Submitted, stats.Delivered, stats.Retried, stats.Failed, stats.Dropped} {
		o.ObserveInt64(e.notifications, int64(v), metric.WithAttributes(notificationStates[i]))
	}
	return nil
}

// Close unregisters the callback. The instruments stay on the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
