package recovery

import (
	"time"

	"github.com/jpillora/backoff"
)

// RetryStrategy defines how long to wait before a retry.
type RetryStrategy interface {
	// GetDelay returns the delay for the given retry attempt (1-indexed).
	GetDelay(attempt int) time.Duration
}

// FixedBackoff waits the same delay before every retry.
type FixedBackoff struct {
	Delay time.Duration
}

// GetDelay returns the fixed delay.
func (s FixedBackoff) GetDelay(int) time.Duration {
	return s.Delay
}

// ExponentialBackoff doubles the delay per attempt, capped at MaxDelay.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// GetDelay calculates InitialDelay * 2^(attempt-1), capped at MaxDelay.
func (s ExponentialBackoff) GetDelay(attempt int) time.Duration {
	b := &backoff.Backoff{
		Min:    s.InitialDelay,
		Max:    s.MaxDelay,
		Factor: 2,
	}
	if attempt < 1 {
		attempt = 1
	}
	return b.ForAttempt(float64(attempt - 1))
}

// NewStrategy returns the strategy named by kind ("fixed" or "exponential").
// Unknown kinds fall back to a fixed delay.
func NewStrategy(kind string, delay, maxDelay time.Duration) RetryStrategy {
	if kind == "exponential" {
		if maxDelay < delay {
			maxDelay = delay
		}
		return ExponentialBackoff{InitialDelay: delay, MaxDelay: maxDelay}
	}
	return FixedBackoff{Delay: delay}
}
