package socket

import (
	"math/rand"
	"time"
)

type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxRetries of 0 retries forever.
	MaxRetries int
}

// Delay is BaseDelay*2^attempt capped at MaxDelay, plus up to one BaseDelay
// of jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := base << uint(attempt)
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(base)))
}

// Exhausted reports whether attempt (1-based) is past the retry budget.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxRetries > 0 && attempt > b.MaxRetries
}
