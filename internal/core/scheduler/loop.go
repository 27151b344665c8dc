package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/core/domain"
)

// DefaultTick is how often the loop scans the registry.
const DefaultTick = time.Second

// Loop scans the registry once per tick and enqueues every due task.
type Loop struct {
	registry *Registry
	queue    *Queue
	tick     time.Duration
	clock    clock.Clock
	log      *slog.Logger
}

// NewLoop creates a scheduler loop. A non-positive tick uses DefaultTick.
func NewLoop(registry *Registry, queue *Queue, tick time.Duration) *Loop {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Loop{
		registry: registry,
		queue:    queue,
		tick:     tick,
		clock:    clock.New(),
		log:      slog.Default().With("component", "scheduler"),
	}
}

// SetClock replaces the time source.
func (l *Loop) SetClock(c clock.Clock) {
	l.clock = c
}

// Run scans immediately and then once per tick until ctx is cancelled. A
// context cancelled before the first scan enqueues nothing.
// Cancellation is observed between ticks; a tick in progress always completes.
// A non-nil error means the loop itself broke and the system should shut down.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("Scheduler loop started", "tick", l.tick, "tasks", l.registry.Len())

	ticker := l.clock.Ticker(l.tick)
	defer ticker.Stop()

	for {
		// Nothing is enqueued once ctx is cancelled.
		if ctx.Err() != nil {
			l.log.Info("Scheduler loop stopped")
			return nil
		}

		if _, err := l.Tick(l.clock.Now()); err != nil {
			l.log.Error("Scheduler loop failed", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Tick enqueues every task due at now, in registry order, and returns how many
// were enqueued.
func (l *Loop) Tick(now time.Time) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler tick panicked: %v", r)
		}
	}()

	for _, name := range l.registry.DueTasks(now) {
		task, err := l.registry.MarkBusy(name)
		if err != nil {
			if errors.Is(err, ErrTaskBusy) {
				continue
			}
			return n, fmt.Errorf("failed to mark task %s busy: %w", name, err)
		}

		item := domain.WorkItem{
			ID:         uuid.NewString(),
			TaskName:   name,
			Task:       task,
			EnqueuedAt: now,
		}
		if err := l.queue.Push(item); err != nil {
			_ = l.registry.Release(name)
			return n, fmt.Errorf("failed to enqueue task %s: %w", name, err)
		}

		n++
		l.log.Debug("Scheduled task", "task", name, "work_item", item.ID)
	}
	return n, nil
}
