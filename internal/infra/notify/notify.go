// Package notify delivers operator alerts for critical errors.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Alert describes one critical failure.
type Alert struct {
	ID        string         `json:"id"`
	Time      time.Time      `json:"time"`
	Component string         `json:"component"`
	Operation string         `json:"operation"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Subject returns the alert subject line.
func (a Alert) Subject() string {
	return "ALERT: Error in Arbitrage System - " + a.Component
}

// Notifier sends alerts out of band. Implementations are best-effort.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// ErrThrottled is returned when an alert is dropped by a rate limit.
var ErrThrottled = errors.New("alert throttled")

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers, continuing past failures.
func (m Multi) Send(ctx context.Context, alert Alert) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
