package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/arbiter/internal/infra/notify"
)

// DefaultFeedSize is how many alerts the feed keeps.
const DefaultFeedSize = 100

// AlertFeed is a notify.Notifier that keeps the most recent alerts in a Redis list.
type AlertFeed struct {
	rdb     *redis.Client
	maxSize int64
}

// NewAlertFeed creates an alert feed capped at maxSize entries.
func NewAlertFeed(client *Client, maxSize int) *AlertFeed {
	if maxSize <= 0 {
		maxSize = DefaultFeedSize
	}
	return &AlertFeed{rdb: client.rdb, maxSize: int64(maxSize)}
}

// Send pushes the alert to the head of the feed and trims the tail.
func (f *AlertFeed) Send(ctx context.Context, alert notify.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, alertsKey, data)
		pipe.LTrim(ctx, alertsKey, 0, f.maxSize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push alert: %w", err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first.
func (f *AlertFeed) Recent(ctx context.Context, limit int) ([]notify.Alert, error) {
	if limit <= 0 || int64(limit) > f.maxSize {
		limit = int(f.maxSize)
	}

	raw, err := f.rdb.LRange(ctx, alertsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	return decodeAlerts(raw)
}

func decodeAlerts(raw []string) ([]notify.Alert, error) {
	alerts := make([]notify.Alert, 0, len(raw))
	for _, s := range raw {
		var a notify.Alert
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("invalid alert payload: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
