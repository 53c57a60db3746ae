package dispatch

import (
	"math/rand/v2"
	"time"

	"github.com/MrEthical07/goSignup/notify"
)

// RetryPolicy controls how failed deliveries are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// Multiplier grows the delay between consecutive retries.
	Multiplier float64
	MaxBackoff time.Duration
	// Jitter randomises each delay by up to +/- Jitter*delay. 0 disables it.
	Jitter float64
	// Retryable reports whether err is worth another attempt. Nil means
	// every error except notify.ErrPermanent.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries three times starting at 5s, doubling up to 1m.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 5 * time.Second,
		Multiplier:     2,
		MaxBackoff:     time.Minute,
		Jitter:         0.2,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if err == nil {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !notify.IsPermanent(err)
}

// Backoff returns the delay before retry number retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	delay := p.InitialBackoff
	if delay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	for i := 1; i < retry; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
			break
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}

	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
