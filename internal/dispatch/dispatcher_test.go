package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSignup/notify"
)

type recordingObserver struct {
	mu        sync.Mutex
	delivered map[JobHandle]int
	failures  []Failure
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{delivered: map[JobHandle]int{}}
}

func (o *recordingObserver) Delivered(handle JobHandle, _ Job, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered[handle] = attempts
}

func (o *recordingObserver) Failed(f Failure) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, f)
}

func fastRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func emailJob() Job {
	return Job{
		Message:   notify.Message{Channel: notify.ChannelEmail, To: "a@b.com", Body: "123456"},
		SessionID: "sid",
	}
}

func TestDispatcherDeliversAndReturnsHandle(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		calls.Add(1)
		return nil
	})
	obs := newRecordingObserver()
	d := New(Config{Workers: 2, QueueSize: 4, Retry: fastRetry(3)}, deliverer, obs)

	handle, err := d.Submit(context.Background(), emailJob())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one delivery, got %d", calls.Load())
	}
	if obs.delivered[handle] != 1 {
		t.Fatalf("expected observer to see delivery on first attempt, got %v", obs.delivered)
	}
	if s := d.Stats(); s.Submitted != 1 || s.Delivered != 1 || s.Failed != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp timeout")
		}
		return nil
	})
	obs := newRecordingObserver()
	d := New(Config{Workers: 1, QueueSize: 1, Retry: fastRetry(3)}, deliverer, obs)

	handle, err := d.Submit(context.Background(), emailJob())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if obs.delivered[handle] != 3 {
		t.Fatalf("expected delivery on third attempt, got %v", obs.delivered)
	}
	if s := d.Stats(); s.Retried != 2 {
		t.Fatalf("expected 2 retries, got %+v", s)
	}
}

func TestDispatcherReportsExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		calls.Add(1)
		return errors.New("connection refused")
	})
	obs := newRecordingObserver()
	d := New(Config{Workers: 1, QueueSize: 1, Retry: fastRetry(3)}, deliverer, obs)

	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if calls.Load() != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d", calls.Load())
	}
	if len(obs.failures) != 1 || obs.failures[0].Attempts != 4 || obs.failures[0].Job.SessionID != "sid" {
		t.Fatalf("unexpected failures %+v", obs.failures)
	}
}

func TestDispatcherDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		calls.Add(1)
		return notify.Permanent(errors.New("mailbox does not exist"))
	})
	obs := newRecordingObserver()
	d := New(Config{Workers: 1, QueueSize: 1, Retry: fastRetry(3)}, deliverer, obs)

	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	_ = d.Close(context.Background())

	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
	if len(obs.failures) != 1 || !notify.IsPermanent(obs.failures[0].Err) {
		t.Fatalf("expected permanent failure, got %+v", obs.failures)
	}
}

func TestDispatcherCustomRetryable(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		calls.Add(1)
		return errors.New("any")
	})
	policy := fastRetry(5)
	policy.Retryable = func(error) bool { return false }

	d := New(Config{Workers: 1, QueueSize: 1, Retry: policy}, deliverer, nil)
	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	_ = d.Close(context.Background())

	if calls.Load() != 1 {
		t.Fatalf("expected no retries, got %d calls", calls.Load())
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	d := New(Config{Workers: 1, QueueSize: 1, DropIfFull: true, Retry: fastRetry(0)}, deliverer, nil)

	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	<-started
	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("second Submit should fill the queue: %v", err)
	}
	if _, err := d.Submit(context.Background(), emailJob()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	_ = d.Close(context.Background())

	if s := d.Stats(); s.Dropped != 1 || s.Delivered != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestDispatcherSubmitAfterClose(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, notify.DelivererFunc(func(context.Context, notify.Message) error {
		return nil
	}), nil)
	_ = d.Close(context.Background())

	if _, err := d.Submit(context.Background(), emailJob()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestDispatcherCloseDeadlineAbandonsRetries(t *testing.T) {
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		return errors.New("down")
	})
	obs := newRecordingObserver()
	policy := RetryPolicy{MaxRetries: 3, InitialBackoff: time.Hour, Multiplier: 2, MaxBackoff: time.Hour}
	d := New(Config{Workers: 1, QueueSize: 1, Retry: policy}, deliverer, obs)

	if _, err := d.Submit(context.Background(), emailJob()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(obs.failures) != 1 {
		t.Fatalf("expected abandoned job to be reported, got %+v", obs.failures)
	}
}

func TestDispatcherRateLimit(t *testing.T) {
	var calls atomic.Int32
	deliverer := notify.DelivererFunc(func(context.Context, notify.Message) error {
		calls.Add(1)
		return nil
	})
	d := New(Config{Workers: 2, QueueSize: 4, RatePerSecond: 50, Burst: 1}, deliverer, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := d.Submit(context.Background(), emailJob()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	_ = d.Close(context.Background())

	if calls.Load() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", calls.Load())
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected limiter to space deliveries, took %v", elapsed)
	}
}
