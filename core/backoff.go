package core

import "time"

const (
	defaultRetryInitialBackoff = 30 * time.Second
	defaultRetryMaxBackoff     = 30 * time.Minute
	defaultRetryMaxAttempts    = 8
)

// ExponentialBackoff doubles the delay per failed attempt starting at Initial
// and never exceeds Max. Attempt n waits Initial * 2^(n-1).
//
// With the defaults the schedule is 30s, 1m, 2m, 4m, 8m, 16m, 30m and the job
// becomes FAILED_PERMANENTLY on the eighth failure.
type ExponentialBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := b.Initial
	if initial <= 0 {
		initial = defaultRetryInitialBackoff
	}
	max := b.Max
	if max <= 0 {
		max = defaultRetryMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Exhausted reports whether a job that has failed attempts times must stop
// retrying.
func (b ExponentialBackoff) Exhausted(attempts int) bool {
	limit := b.MaxAttempts
	if limit <= 0 {
		limit = defaultRetryMaxAttempts
	}
	return attempts >= limit
}
