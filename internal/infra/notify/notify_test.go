package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Send(ctx context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("smtp down")}
	m := Multi{bad, ok}

	err := m.Send(context.Background(), Alert{ID: "1"})
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.alerts) != 1 || len(bad.alerts) != 1 {
		t.Errorf("expected every notifier to be called")
	}

	if err := (Multi{ok}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestThrottled_DropsBurst(t *testing.T) {
	next := &recordingNotifier{}
	th := NewThrottled(next, 1, 2)

	var throttled int
	for i := 0; i < 5; i++ {
		if err := th.Send(context.Background(), Alert{}); errors.Is(err, ErrThrottled) {
			throttled++
		}
	}

	if len(next.alerts) != 2 {
		t.Errorf("expected 2 alerts through, got %d", len(next.alerts))
	}
	if throttled != 3 {
		t.Errorf("expected 3 throttled, got %d", throttled)
	}
}

func TestSMTP_Send(t *testing.T) {
	s := NewSMTP(SMTPConfig{Enabled: true, Username: "user", Password: "pw", ToEmail: "a@x.io,b@x.io"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		if a == nil {
			t.Error("expected auth when username is set")
		}
		return nil
	}

	alert := Alert{
		ID:        "id-1",
		Time:      time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		Component: "TaskScheduler",
		Operation: "task_process_orders",
		Message:   "payment declined <card>",
		Fields:    map[string]any{"task_name": "process_orders"},
	}
	if err := s.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAddr != "smtp.gmail.com:587" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if gotFrom != "arbitrage@example.com" {
		t.Errorf("unexpected from %s", gotFrom)
	}
	if len(gotTo) != 2 {
		t.Errorf("expected 2 recipients, got %v", gotTo)
	}
	for _, want := range []string{
		"Subject: ALERT: Error in Arbitrage System - TaskScheduler",
		"Content-Type: text/html",
		"2026-10-18 09:30:00",
		"payment declined &lt;card&gt;",
		"process_orders",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTP_SendHonoursContext(t *testing.T) {
	s := NewSMTP(SMTPConfig{})
	block := make(chan struct{})
	defer close(block)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := s.Send(ctx, Alert{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRenderAlert_NoContext(t *testing.T) {
	body, err := renderAlert(Alert{Message: "x"})
	if err != nil {
		t.Fatalf("renderAlert failed: %v", err)
	}
	if !strings.Contains(body, "No context provided") {
		t.Error("expected placeholder context")
	}
}
