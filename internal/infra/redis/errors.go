package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/arbiter/internal/core/recovery"
)

// ErrorSnapshot mirrors the error counters into a Redis hash so other
// processes can read them.
type ErrorSnapshot struct {
	rdb *redis.Client
}

// NewErrorSnapshot creates a snapshot writer/reader.
func NewErrorSnapshot(client *Client) *ErrorSnapshot {
	return &ErrorSnapshot{rdb: client.rdb}
}

// Save replaces the stored snapshot with records.
func (s *ErrorSnapshot) Save(ctx context.Context, records []recovery.Record) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, errorsKey)
		if len(records) > 0 {
			pipe.HSet(ctx, errorsKey, snapshotFields(records))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save error snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, highest count first.
func (s *ErrorSnapshot) Load(ctx context.Context) ([]recovery.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, errorsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}
	return parseSnapshot(fields)
}

func snapshotField(k recovery.Key) string {
	return k.Component + ":" + k.Operation
}

func snapshotFields(records []recovery.Record) map[string]any {
	fields := make(map[string]any, len(records))
	for _, r := range records {
		fields[snapshotField(r.Key)] = r.Count
	}
	return fields
}

func parseSnapshot(fields map[string]string) ([]recovery.Record, error) {
	records := make([]recovery.Record, 0, len(fields))
	for field, val := range fields {
		component, operation, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("invalid snapshot field: %s", field)
		}
		count, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid count for %s: %w", field, err)
		}
		records = append(records, recovery.Record{
			Key:   recovery.Key{Component: component, Operation: operation},
			Count: count,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].Key.String() < records[j].Key.String()
	})
	return records, nil
}
