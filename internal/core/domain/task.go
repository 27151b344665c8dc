package domain

import (
	"context"
	"time"
)

// Action is the body of a scheduled task. A nil return means success.
type Action func(ctx context.Context) error

// Task describes a periodically eligible unit of work.
type Task struct {
	Name     string
	Action   Action
	Interval time.Duration
	LastRun  time.Time // zero until the first completed attempt
	Busy     bool      // true while enqueued, backing off or executing
	Retries  int       // consecutive retries in the current cycle

	// Quarantined is set when the retry cap stopped the last cycle and cleared
	// by the next successful run.
	Quarantined bool
}

// HasRun reports whether the task completed at least one attempt.
func (t Task) HasRun() bool {
	return !t.LastRun.IsZero()
}

// DueAt reports whether the task is eligible at now. The interval boundary is inclusive.
func (t Task) DueAt(now time.Time) bool {
	if t.Busy {
		return false
	}
	if !t.HasRun() {
		return true
	}
	return now.Sub(t.LastRun) >= t.Interval
}

// WorkItem is one queued execution of a task.
type WorkItem struct {
	ID         string
	TaskName   string
	Task       Task // snapshot taken at enqueue time
	Attempt    int  // 0 for a scheduled run, n for the n-th retry
	EnqueuedAt time.Time
}
