package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/arbiter/internal/core/domain"
)

func TestQueue_FIFOAndPending(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := q.Push(domain.WorkItem{TaskName: name}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		item, ok, err := q.Pop(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Pop failed: ok=%v err=%v", ok, err)
		}
		if item.TaskName != want {
			t.Errorf("expected %s, got %s", want, item.TaskName)
		}
	}

	if q.Pending() != 3 {
		t.Errorf("expected 3 pending before Done, got %d", q.Pending())
	}
	q.Done()
	q.Done()
	q.Done()
	if q.Pending() != 0 {
		t.Errorf("expected 0 pending, got %d", q.Pending())
	}
}

func TestQueue_PopTimeout(t *testing.T) {
	q := NewQueue()

	start := time.Now()
	_, ok, err := q.Pop(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if ok {
		t.Error("expected no item")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Pop returned before timeout")
	}
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	q := NewQueue()
	got := make(chan string, 1)

	go func() {
		item, ok, _ := q.Pop(context.Background(), 5*time.Second)
		if ok {
			got <- item.TaskName
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_ = q.Push(domain.WorkItem{TaskName: "late"})

	select {
	case name := <-got:
		if name != "late" {
			t.Errorf("expected late, got %s", name)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop was not woken by Push")
	}
}

func TestQueue_CloseWakesAllWaiters(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	errs := make(chan error, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := q.Pop(context.Background(), 5*time.Second)
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake all waiters")
	}

	close(errs)
	for err := range errs {
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("expected ErrQueueClosed, got %v", err)
		}
	}
	if err := q.Push(domain.WorkItem{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed on Push, got %v", err)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue()
	_ = q.Push(domain.WorkItem{TaskName: "a"})
	_ = q.Push(domain.WorkItem{TaskName: "b"})

	items := q.Drain()
	if len(items) != 2 {
		t.Fatalf("expected 2 drained items, got %d", len(items))
	}
	if q.Len() != 0 || q.Pending() != 0 {
		t.Errorf("expected empty queue, len=%d pending=%d", q.Len(), q.Pending())
	}
}

func TestQueue_PopContextCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Pop(ctx, time.Second)
	if ok || !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got ok=%v err=%v", ok, err)
	}
}
