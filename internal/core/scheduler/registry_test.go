package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noop(ctx context.Context) error { return nil }

func TestRegistry_DueBoundaryInclusive(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("ping", noop, time.Minute); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if _, err := r.MarkBusy("ping"); err != nil {
		t.Fatalf("MarkBusy failed: %v", err)
	}
	if err := r.MarkDone("ping", t0); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	if due := r.DueTasks(t0.Add(time.Minute - time.Nanosecond)); len(due) != 0 {
		t.Errorf("expected no due tasks just before the interval, got %v", due)
	}
	if due := r.DueTasks(t0.Add(time.Minute)); len(due) != 1 || due[0] != "ping" {
		t.Errorf("expected [ping] at the interval boundary, got %v", due)
	}
}

func TestRegistry_NeverRunIsDue(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", noop, time.Hour)

	if due := r.DueTasks(time.Now()); len(due) != 1 {
		t.Errorf("expected never-run task to be due, got %v", due)
	}
}

func TestRegistry_BusyIsNotDue(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", noop, time.Millisecond)

	if _, err := r.MarkBusy("a"); err != nil {
		t.Fatalf("MarkBusy failed: %v", err)
	}
	if due := r.DueTasks(time.Now().Add(time.Hour)); len(due) != 0 {
		t.Errorf("busy task must not be due, got %v", due)
	}
	if _, err := r.MarkBusy("a"); !errors.Is(err, ErrTaskBusy) {
		t.Errorf("expected ErrTaskBusy, got %v", err)
	}
}

func TestRegistry_OrderAndOverwrite(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", noop, time.Minute)
	_ = r.Register("b", noop, time.Minute)
	_ = r.Register("c", noop, time.Minute)

	// overwrite keeps position and replaces the interval
	if err := r.Register("a", noop, time.Hour); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	due := r.DueTasks(time.Now())
	want := []string{"a", "b", "c"}
	if len(due) != len(want) {
		t.Fatalf("expected %v, got %v", want, due)
	}
	for i := range want {
		if due[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], due[i])
		}
	}

	task, ok := r.Get("a")
	if !ok || task.Interval != time.Hour {
		t.Errorf("expected overwritten interval 1h, got %v", task.Interval)
	}
	if r.Len() != 3 {
		t.Errorf("expected 3 tasks, got %d", r.Len())
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", noop, time.Minute); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register("a", nil, time.Minute); err == nil {
		t.Error("expected error for nil action")
	}
	if err := r.Register("a", noop, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestRegistry_MarkDoneAndRelease(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", noop, time.Minute)
	ranAt := time.Now()

	_, _ = r.MarkBusy("a")
	r.NoteRetry("a", 2)
	if task, _ := r.Get("a"); task.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", task.Retries)
	}

	if err := r.MarkDone("a", ranAt); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	task, _ := r.Get("a")
	if task.Busy || !task.LastRun.Equal(ranAt) || task.Retries != 0 {
		t.Errorf("unexpected state after MarkDone: %+v", task)
	}

	_, _ = r.MarkBusy("a")
	if err := r.Release("a"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	task, _ = r.Get("a")
	if task.Busy || !task.LastRun.Equal(ranAt) {
		t.Errorf("Release must clear busy and keep LastRun: %+v", task)
	}

	if err := r.MarkDone("missing", ranAt); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRegistry_QuarantineLiftedBySuccess(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("stuck", noop, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _ = r.MarkBusy("stuck")
	r.NoteRetry("stuck", 2)
	if err := r.Quarantine("stuck", t0); err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}

	task, _ := r.Get("stuck")
	if !task.Quarantined || task.Busy || task.Retries != 0 || !task.LastRun.Equal(t0) {
		t.Fatalf("unexpected quarantined task: %+v", task)
	}

	// A plain terminal failure keeps the flag.
	_, _ = r.MarkBusy("stuck")
	_ = r.MarkDone("stuck", t0.Add(time.Minute))
	if task, _ = r.Get("stuck"); !task.Quarantined {
		t.Error("MarkDone must not lift the quarantine")
	}

	_, _ = r.MarkBusy("stuck")
	_ = r.MarkSucceeded("stuck", t0.Add(2*time.Minute))
	if task, _ = r.Get("stuck"); task.Quarantined || task.Busy {
		t.Errorf("expected quarantine lifted, got %+v", task)
	}

	if err := r.Quarantine("missing", t0); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}
