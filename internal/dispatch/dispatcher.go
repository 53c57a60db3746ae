package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/goSignup/notify"
)

var (
	ErrQueueFull = errors.New("dispatch queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// JobHandle identifies a submitted job.
type JobHandle string

// Job is one message to deliver. SessionID and TenantID are carried for
// observers only.
type Job struct {
	Message   notify.Message
	SessionID string
	TenantID  string
}

// Failure reports a job that will not be delivered.
type Failure struct {
	Handle   JobHandle
	Job      Job
	Attempts int
	Err      error
}

// Observer is notified once per job with its final outcome. Calls come from
// worker goroutines and must not block for long.
type Observer interface {
	Delivered(handle JobHandle, job Job, attempts int)
	Failed(failure Failure)
}

type noopObserver struct{}

func (noopObserver) Delivered(JobHandle, Job, int) {}
func (noopObserver) Failed(Failure)                {}

// Config controls queueing, concurrency and retry behavior.
type Config struct {
	Workers    int
	QueueSize  int
	DropIfFull bool
	// AttemptTimeout bounds a single Deliver call. 0 means no bound.
	AttemptTimeout time.Duration
	// RatePerSecond limits outbound deliveries across all workers. 0 disables it.
	RatePerSecond float64
	Burst         int
	Retry         RetryPolicy
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Submitted uint64
	Delivered uint64
	Retried   uint64
	Failed    uint64
	Dropped   uint64
}

type queuedJob struct {
	handle JobHandle
	job    Job
}

// Dispatcher queues jobs and delivers them from a worker pool.
type Dispatcher struct {
	cfg       Config
	deliverer notify.Deliverer
	observer  Observer
	limiter   *rate.Limiter

	mu     sync.RWMutex
	closed bool
	ch     chan queuedJob

	// runCtx is cancelled when Close gives up waiting. Backoff waits and
	// in-flight deliveries observe it.
	runCtx    context.Context
	abort     context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	submitted atomic.Uint64
	delivered atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func New(cfg Config, deliverer notify.Deliverer, observer Observer) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if observer == nil {
		observer = noopObserver{}
	}

	runCtx, abort := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:       cfg,
		deliverer: deliverer,
		observer:  observer,
		ch:        make(chan queuedJob, cfg.QueueSize),
		runCtx:    runCtx,
		abort:     abort,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}

	return d
}

// Submit queues job and returns its handle without waiting for delivery.
// With DropIfFull a full queue returns ErrQueueFull; otherwise Submit waits
// for space until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (JobHandle, error) {
	if d == nil {
		return "", ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return "", ErrClosed
	}

	item := queuedJob{handle: JobHandle(uuid.NewString()), job: job}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
		default:
			d.dropped.Add(1)
			return "", ErrQueueFull
		}
	} else {
		select {
		case d.ch <- item:
		case <-ctx.Done():
			d.dropped.Add(1)
			return "", ctx.Err()
		}
	}

	d.submitted.Add(1)
	return item.handle, nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for item := range d.ch {
		d.process(item)
	}
}

func (d *Dispatcher) process(item queuedJob) {
	var (
		attempts int
		lastErr  error
	)

	for {
		if err := d.runCtx.Err(); err != nil {
			if lastErr == nil {
				lastErr = ErrClosed
			}
			break
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(d.runCtx); err != nil {
				if lastErr == nil {
					lastErr = ErrClosed
				}
				break
			}
		}

		attempts++
		lastErr = d.deliver(item.job)
		if lastErr == nil {
			d.delivered.Add(1)
			d.observer.Delivered(item.handle, item.job, attempts)
			return
		}

		if attempts > d.cfg.Retry.MaxRetries || !d.cfg.Retry.retryable(lastErr) {
			break
		}

		d.retried.Add(1)
		if !d.sleep(d.cfg.Retry.Backoff(attempts)) {
			break
		}
	}

	d.failed.Add(1)
	d.observer.Failed(Failure{
		Handle:   item.handle,
		Job:      item.job,
		Attempts: attempts,
		Err:      lastErr,
	})
}

func (d *Dispatcher) deliver(job Job) error {
	ctx := d.runCtx
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()
	}
	return d.deliverer.Deliver(ctx, job.Message)
}

func (d *Dispatcher) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return d.runCtx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.runCtx.Done():
		return false
	}
}

// Close stops intake and waits for queued jobs to finish. When ctx ends
// first, pending retries are abandoned and reported as failures.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.abort()
		return nil
	case <-ctx.Done():
		d.abort()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Submitted: d.submitted.Load(),
		Delivered: d.delivered.Load(),
		Retried:   d.retried.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
