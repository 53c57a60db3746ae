package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSignup/notify"
)

func TestRetryPolicyBackoffGrowsAndCaps(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Jitter = 0

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestRetryPolicyJitterStaysInRange(t *testing.T) {
	p := DefaultRetryPolicy()
	for i := 0; i < 100; i++ {
		got := p.Backoff(1)
		if got < 4*time.Second || got > 6*time.Second {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestRetryPolicyRetryable(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.retryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if !p.retryable(errors.New("timeout")) {
		t.Fatal("plain errors are retryable by default")
	}
	if p.retryable(notify.Permanent(errors.New("bad address"))) {
		t.Fatal("permanent errors are not retryable")
	}
}
