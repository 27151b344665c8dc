// Package worker runs queued tasks on a fixed set of goroutines and turns their
// failures into retry decisions.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/core/recovery"
	"github.com/vietddude/arbiter/internal/core/scheduler"
	"github.com/vietddude/arbiter/internal/metrics"
)

// Component is the error-counter component tag for every scheduled task.
const Component = "TaskScheduler"

// TaskKey returns the error-counter key of a task. Success resets and failure
// records both go through it so they always address the same counter.
func TaskKey(name string) (component, operation string) {
	return Component, "task_" + name
}

// ErrorPolicy decides what happens after a task fails.
type ErrorPolicy interface {
	Handle(ctx context.Context, err error, component, operation string, fields map[string]any) bool
	Reset(component, operation string)
}

// Config holds worker pool settings.
type Config struct {
	Workers     int           // number of goroutines (default: 3)
	RetryCap    int           // max consecutive retries per cycle, <= 0 = unlimited
	PopTimeout  time.Duration // queue wait before re-checking stop (default: 1s)
	JoinTimeout time.Duration // how long Stop waits for workers (default: 1s)
	TaskTimeout time.Duration // deadline for one task body, 0 = none
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     3,
		RetryCap:    10,
		PopTimeout:  time.Second,
		JoinTimeout: time.Second,
	}
}

// Pool is a fixed set of workers draining the shared queue.
type Pool struct {
	cfg      Config
	registry *scheduler.Registry
	queue    *scheduler.Queue
	policy   ErrorPolicy
	strategy recovery.RetryStrategy
	clock    clock.Clock
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a worker pool.
func NewPool(
	cfg Config,
	registry *scheduler.Registry,
	queue *scheduler.Queue,
	policy ErrorPolicy,
	strategy recovery.RetryStrategy,
) *Pool {
	d := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = d.PopTimeout
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = d.JoinTimeout
	}
	if strategy == nil {
		strategy = recovery.FixedBackoff{Delay: time.Minute}
	}
	return &Pool{
		cfg:      cfg,
		registry: registry,
		queue:    queue,
		policy:   policy,
		strategy: strategy,
		clock:    clock.New(),
		log:      slog.Default().With("component", "worker"),
	}
}

// SetClock replaces the time source used for backoff and timestamps.
func (p *Pool) SetClock(c clock.Clock) {
	p.clock = c
}

// Start launches the workers. Calling Start on a running pool, or with a
// cancelled ctx, is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	if ctx.Err() != nil {
		p.log.Warn("Worker pool not started, context already cancelled")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.log.Info("Worker pool started", "workers", p.cfg.Workers)
}

// Stop signals the workers and waits up to JoinTimeout for them to exit. Task bodies
// already executing are not interrupted. Work still queued is dropped and its tasks
// released. It reports whether every worker exited in time.
func (p *Pool) Stop() bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return true
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	joined := true
	select {
	case <-done:
	case <-time.After(p.cfg.JoinTimeout):
		joined = false
		p.log.Warn("Workers still busy after join timeout", "timeout", p.cfg.JoinTimeout)
	}

	for _, item := range p.queue.Drain() {
		if err := p.registry.Release(item.TaskName); err != nil {
			p.log.Warn("Failed to release dropped task", "task", item.TaskName, "error", err)
		}
	}

	p.log.Info("Worker pool stopped")
	return joined
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With("worker", id)

	for {
		if ctx.Err() != nil {
			return
		}

		item, ok, err := p.queue.Pop(ctx, p.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, scheduler.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Failed to pop work item", "error", err)
			continue
		}
		if !ok {
			continue
		}

		p.process(ctx, log, item)
	}
}

// process executes one work item. The queue acknowledgement happens on every path.
func (p *Pool) process(ctx context.Context, log *slog.Logger, item domain.WorkItem) {
	defer p.queue.Done()

	name := item.TaskName
	component, operation := TaskKey(name)
	log = log.With("task", name, "work_item", item.ID, "attempt", item.Attempt)

	log.Info("Executing task")
	err := p.execute(ctx, item)
	now := p.clock.Now()

	if err == nil {
		p.policy.Reset(component, operation)
		if err := p.registry.MarkSucceeded(name, now); err != nil {
			log.Error("Failed to mark task done", "error", err)
		}
		metrics.TaskRuns.WithLabelValues(name, "success").Inc()
		log.Debug("Task completed")
		return
	}

	retry := p.policy.Handle(ctx, err, component, operation, map[string]any{
		"task_name": name,
		"attempt":   item.Attempt,
		"work_item": item.ID,
	})
	if !retry {
		p.markDone(log, name, now)
		metrics.TaskRuns.WithLabelValues(name, "failed").Inc()
		log.Warn("Task failed, not retrying until next interval")
		return
	}

	attempt := item.Attempt + 1
	if p.cfg.RetryCap > 0 && attempt > p.cfg.RetryCap {
		if err := p.registry.Quarantine(name, now); err != nil {
			log.Error("Failed to quarantine task", "error", err)
		}
		metrics.TaskRuns.WithLabelValues(name, "quarantined").Inc()
		log.Error("Task quarantined after too many retries", "retry_cap", p.cfg.RetryCap)
		return
	}

	metrics.TaskRuns.WithLabelValues(name, "retry").Inc()
	metrics.TaskRetries.WithLabelValues(name).Inc()
	p.registry.NoteRetry(name, attempt)

	delay := p.strategy.GetDelay(attempt)
	log.Info("Retrying task after error", "delay", delay)

	// The task stays busy during the backoff so the loop cannot enqueue it again.
	select {
	case <-p.clock.After(delay):
	case <-ctx.Done():
		_ = p.registry.Release(name)
		log.Info("Retry abandoned on shutdown")
		return
	}

	next := domain.WorkItem{
		ID:         uuid.NewString(),
		TaskName:   name,
		Task:       item.Task,
		Attempt:    attempt,
		EnqueuedAt: p.clock.Now(),
	}
	if err := p.queue.Push(next); err != nil {
		_ = p.registry.Release(name)
		log.Error("Failed to requeue task", "error", err)
	}
}

// execute runs the task body, converting a panic into an error.
func (p *Pool) execute(ctx context.Context, item domain.WorkItem) (err error) {
	start := p.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", item.TaskName, r)
		}
		metrics.TaskDuration.WithLabelValues(item.TaskName).Observe(p.clock.Since(start).Seconds())
	}()

	if item.Task.Action == nil {
		return fmt.Errorf("task %s has no action", item.TaskName)
	}

	// Stopping the pool does not cancel a running body.
	taskCtx := context.WithoutCancel(ctx)
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, p.cfg.TaskTimeout)
		defer cancel()
	}
	return item.Task.Action(taskCtx)
}

func (p *Pool) markDone(log *slog.Logger, name string, at time.Time) {
	if err := p.registry.MarkDone(name, at); err != nil {
		log.Error("Failed to mark task done", "error", err)
	}
}
