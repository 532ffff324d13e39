package stream

import "time"

const DefaultReconnectDelay = 3 * time.Second

// RetryPolicy decides how long the supervisor waits before reopening the
// stream. attempt counts consecutive failures since the last successful open,
// starting at zero.
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedRetry waits the same interval before every attempt, forever.
type FixedRetry struct {
	Interval time.Duration
}

func (p FixedRetry) Delay(int) time.Duration {
	if p.Interval <= 0 {
		return DefaultReconnectDelay
	}
	return p.Interval
}

// ExponentialRetry doubles the wait after each consecutive failure, capped
// at Max.
type ExponentialRetry struct {
	Base time.Duration
	Max  time.Duration
}

func (p ExponentialRetry) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultReconnectDelay
	}
	limit := p.Max
	if limit < base {
		limit = base
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= limit || delay <= 0 {
			return limit
		}
	}
	return delay
}
