package market

import "time"

// Backoff yields exponentially growing delays bounded by max.
// It is not safe for concurrent use.
type Backoff struct {
	min time.Duration
	max time.Duration
	cur time.Duration
}

func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
		return b.cur
	}
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return b.cur
}

// Reset restarts the sequence at min.
func (b *Backoff) Reset() {
	b.cur = 0
}
