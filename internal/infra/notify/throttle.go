package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttled drops alerts above a sustained rate so a failing loop cannot flood the inbox.
type Throttled struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewThrottled allows perMinute alerts per minute with the given burst.
func NewThrottled(next Notifier, perMinute float64, burst int) *Throttled {
	if perMinute <= 0 {
		perMinute = 6
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), burst),
	}
}

// Send forwards the alert if the limiter has a token.
func (t *Throttled) Send(ctx context.Context, alert Alert) error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	return t.next.Send(ctx, alert)
}
