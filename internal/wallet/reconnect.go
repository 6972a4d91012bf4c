package wallet

import (
	"sync"
	"time"
)

// MaxBackoff caps the delay between reconnect attempts.
const MaxBackoff = time.Hour

// Backoff returns the delay before reconnect attempt n (1-based):
// base * 2^(n-1), saturating at MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	if base >= MaxBackoff {
		return MaxBackoff
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= MaxBackoff/2 {
			return MaxBackoff
		}
		delay *= 2
	}
	return delay
}

// Reconnector schedules bounded reconnection attempts with exponential
// backoff. At most one attempt is pending at any time.
type Reconnector struct {
	mu       sync.Mutex
	base     time.Duration
	max      int
	attempts int
	pending  bool
	timer    *time.Timer
	gen      uint64
}

// NewReconnector creates a reconnector allowing maxAttempts attempts spaced by Backoff(base, n).
func NewReconnector(base time.Duration, maxAttempts int) *Reconnector {
	return &Reconnector{base: base, max: maxAttempts}
}

// Schedule reserves the next attempt, calls prepare(attempt, delay) and then
// arms a timer that calls fire(attempt) after the delay. prepare runs before
// the timer exists, so it always observes the attempt before fire does.
// Schedule reports false without scheduling when an attempt is already
// pending, the attempts are exhausted, or the reconnector is cancelled
// while prepare runs.
func (r *Reconnector) Schedule(prepare func(attempt int, delay time.Duration), fire func(attempt int)) (attempt int, delay time.Duration, scheduled bool) {
	r.mu.Lock()
	if r.pending || r.attempts >= r.max {
		attempt = r.attempts
		r.mu.Unlock()
		return attempt, 0, false
	}
	r.attempts++
	r.pending = true
	attempt = r.attempts
	delay = Backoff(r.base, attempt)
	gen := r.gen
	r.mu.Unlock()

	if prepare != nil {
		prepare(attempt, delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return attempt, delay, false
	}

	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		r.timer = nil
		r.pending = false
		r.mu.Unlock()

		fire(attempt)
	})

	return attempt, delay, true
}

// Cancel stops the pending attempt, if any. The attempt counter is kept.
func (r *Reconnector) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

// Reset cancels the pending attempt and clears the attempt counter.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
	r.attempts = 0
}

func (r *Reconnector) cancelLocked() {
	r.gen++
	r.pending = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Attempts returns the number of attempts scheduled since the last Reset.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// MaxAttempts returns the attempt limit.
func (r *Reconnector) MaxAttempts() int {
	return r.max
}

// Pending reports whether an attempt is scheduled.
func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Exhausted reports whether every allowed attempt has been used.
func (r *Reconnector) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts >= r.max
}
