// Package scheduler holds the task registry, the shared work queue and the loop
// that moves due tasks from one to the other.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/arbiter/internal/core/domain"
)

var (
	// ErrTaskNotFound is returned for operations on an unregistered task name
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskBusy is returned when marking an already busy task busy
	ErrTaskBusy = errors.New("task already busy")
)

// Registry holds task descriptors in registration order.
//
// The scheduler loop is the only caller of MarkBusy; workers are the only callers of
// MarkDone, MarkSucceeded, Quarantine, Release and NoteRetry.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*domain.Task
	log   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*domain.Task),
		log:   slog.Default().With("component", "registry"),
	}
}

// Register adds a task that has never run. See RegisterTask.
func (r *Registry) Register(name string, action domain.Action, interval time.Duration) error {
	return r.RegisterTask(domain.Task{Name: name, Action: action, Interval: interval})
}

// RegisterTask adds task, or overwrites a task with the same name in place, keeping
// its original position in the registry order.
func (r *Registry) RegisterTask(task domain.Task) error {
	if task.Name == "" {
		return errors.New("task name is required")
	}
	if task.Action == nil {
		return fmt.Errorf("task %s: action is required", task.Name)
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %v", task.Name, task.Interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := task
	if _, exists := r.tasks[task.Name]; exists {
		r.log.Warn("Overwriting task registration", "task", task.Name)
	} else {
		r.order = append(r.order, task.Name)
	}
	r.tasks[task.Name] = &t

	r.log.Info("Added task", "task", task.Name, "interval", task.Interval)
	return nil
}

// DueTasks returns, in registry order, every non-busy task that never ran or whose
// interval has elapsed at now.
func (r *Registry) DueTasks(now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []string
	for _, name := range r.order {
		if r.tasks[name].DueAt(now) {
			due = append(due, name)
		}
	}
	return due
}

// MarkBusy flags the task as in flight and returns a snapshot of it.
func (r *Registry) MarkBusy(name string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[name]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	if t.Busy {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskBusy, name)
	}
	t.Busy = true
	return *t, nil
}

// MarkDone clears the busy flag and sets LastRun to ranAt, whatever the outcome.
func (r *Registry) MarkDone(name string, ranAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.Busy = false
	t.LastRun = ranAt
	t.Retries = 0
	return nil
}

// MarkSucceeded is MarkDone for a successful run. It also lifts a quarantine.
func (r *Registry) MarkSucceeded(name string, ranAt time.Time) error {
	return r.finish(name, ranAt, false)
}

// Quarantine is MarkDone for a task that hit the retry cap. The task stays
// quarantined until it next succeeds.
func (r *Registry) Quarantine(name string, ranAt time.Time) error {
	return r.finish(name, ranAt, true)
}

func (r *Registry) finish(name string, ranAt time.Time, quarantined bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.Busy = false
	t.LastRun = ranAt
	t.Retries = 0
	t.Quarantined = quarantined
	return nil
}

// Release clears the busy flag without touching LastRun, making the task eligible
// on the next tick. Used when queued work is abandoned on shutdown.
func (r *Registry) Release(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.Busy = false
	t.Retries = 0
	return nil
}

// NoteRetry records the number of consecutive retries of the current cycle.
func (r *Registry) NoteRetry(name string, retries int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[name]; ok {
		t.Retries = retries
	}
}

// Get returns a snapshot of the named task.
func (r *Registry) Get(name string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// Tasks returns snapshots of all tasks in registry order.
func (r *Registry) Tasks() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tasks[name])
	}
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
