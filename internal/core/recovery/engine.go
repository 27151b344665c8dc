// Package recovery classifies task failures, counts them per component and operation,
// and decides whether they are critical and whether they should be retried.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/infra/notify"
	"github.com/vietddude/arbiter/internal/metrics"
)

// Key identifies an error counter.
type Key struct {
	Component string
	Operation string
}

func (k Key) String() string {
	return k.Component + "_" + k.Operation
}

// Record is one row of the error report.
type Record struct {
	Key   Key
	Count int
}

// Config holds error handling settings.
type Config struct {
	MaxRetries    int           `yaml:"max_retries"`
	Backoff       string        `yaml:"backoff"` // fixed, exponential
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	Patterns      Patterns      `yaml:"patterns"`
}

// DefaultConfig returns the stock error handling settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		Backoff:       "fixed",
		MaxBackoff:    10 * time.Minute,
		NotifyTimeout: 30 * time.Second,
		Patterns:      DefaultPatterns(),
	}
}

// Engine is the error policy engine. It is safe for concurrent use.
type Engine struct {
	cfg      Config
	critical []Rule
	retry    []Rule
	notifier notify.Notifier
	clock    clock.Clock
	log      *slog.Logger

	mu     sync.Mutex
	counts map[Key]int
}

// NewEngine creates an engine. A nil notifier disables alerting.
func NewEngine(cfg Config, notifier notify.Notifier) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	cfg.Patterns = cfg.Patterns.withDefaults()

	return &Engine{
		cfg:      cfg,
		critical: CriticalRules(cfg.Patterns, cfg.MaxRetries),
		retry:    RetryRules(cfg.Patterns, cfg.MaxRetries),
		notifier: notifier,
		clock:    clock.New(),
		log:      slog.Default().With("component", "recovery"),
		counts:   make(map[Key]int),
	}
}

// SetClock replaces the time source used for alert timestamps.
func (e *Engine) SetClock(c clock.Clock) {
	e.clock = c
}

// MaxRetries returns the configured threshold.
func (e *Engine) MaxRetries() int {
	return e.cfg.MaxRetries
}

// Handle records a failure, alerts on critical ones and returns whether to retry.
func (e *Engine) Handle(
	ctx context.Context,
	err error,
	component, operation string,
	fields map[string]any,
) bool {
	msg := errorText(err)
	e.log.Error("Operation failed", "in", component, "operation", operation, "error", msg)

	critical := e.ClassifyAndCount(err, component, operation)
	if critical {
		e.dispatch(ctx, component, operation, msg, fields)
	}

	return e.ShouldRetry(component, operation, err)
}

// ClassifyAndCount increments the counter for (component, operation) and reports
// whether the failure is critical.
func (e *Engine) ClassifyAndCount(err error, component, operation string) bool {
	key := Key{Component: component, Operation: operation}

	e.mu.Lock()
	e.counts[key]++
	count := e.counts[key]
	e.mu.Unlock()

	critical, rule := Evaluate(e.critical, Failure{
		Component: component,
		Operation: operation,
		Message:   errorText(err),
		Count:     count,
	}, false)

	metrics.ErrorsTotal.WithLabelValues(component, operation, strconv.FormatBool(critical)).Inc()
	metrics.ErrorCount.WithLabelValues(component, operation).Set(float64(count))

	if critical {
		e.log.Warn("Critical error", "key", key.String(), "rule", rule, "count", count)
	}
	return critical
}

// ShouldRetry reports whether a failed operation should be attempted again.
func (e *Engine) ShouldRetry(component, operation string, err error) bool {
	retry, rule := Evaluate(e.retry, Failure{
		Component: component,
		Operation: operation,
		Message:   errorText(err),
		Count:     e.Count(component, operation),
	}, true)

	e.log.Debug("Retry decision", "in", component, "operation", operation, "retry", retry, "rule", rule)
	return retry
}

// Reset zeroes the counter for (component, operation).
func (e *Engine) Reset(component, operation string) {
	key := Key{Component: component, Operation: operation}

	e.mu.Lock()
	_, tracked := e.counts[key]
	if tracked {
		e.counts[key] = 0
	}
	e.mu.Unlock()

	if tracked {
		metrics.ErrorCount.WithLabelValues(component, operation).Set(0)
	}
}

// Count returns the current counter for (component, operation).
func (e *Engine) Count(component, operation string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[Key{Component: component, Operation: operation}]
}

// Report returns a snapshot of all counters, highest count first.
func (e *Engine) Report() []Record {
	e.mu.Lock()
	records := make([]Record, 0, len(e.counts))
	for k, c := range e.counts {
		records = append(records, Record{Key: k, Count: c})
	}
	e.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].Key.String() < records[j].Key.String()
	})
	return records
}

// FormatReport renders Report as a fixed-width table.
func FormatReport(records []Record) string {
	var b strings.Builder
	b.WriteString("Error Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	if len(records) == 0 {
		b.WriteString("No errors recorded.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %-10s\n", "Component/Operation", "Error Count")
	b.WriteString(strings.Repeat("-", 50) + "\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-30s %-10d\n", r.Key.String(), r.Count)
	}
	return b.String()
}

func (e *Engine) dispatch(ctx context.Context, component, operation, msg string, fields map[string]any) {
	if e.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifyTimeout)
	defer cancel()

	alert := notify.Alert{
		ID:        uuid.NewString(),
		Time:      e.clock.Now(),
		Component: component,
		Operation: operation,
		Message:   msg,
		Fields:    fields,
	}

	if err := e.notifier.Send(ctx, alert); err != nil {
		if errors.Is(err, notify.ErrThrottled) {
			metrics.AlertsTotal.WithLabelValues("throttled").Inc()
			e.log.Warn("Alert throttled", "alert_id", alert.ID, "operation", operation)
			return
		}
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		e.log.Error("Failed to send error notification", "alert_id", alert.ID, "error", err)
		return
	}

	metrics.AlertsTotal.WithLabelValues("sent").Inc()
	e.log.Info("Error notification sent", "alert_id", alert.ID, "operation", operation)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
