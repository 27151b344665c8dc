package health

import (
	"context"
	"sync"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/core/domain"
)

// TaskSource lists the registered tasks.
type TaskSource interface {
	Tasks() []domain.Task
}

// ErrorCounter returns the failure count recorded for a task.
type ErrorCounter func(task string) int

// Check probes an external dependency such as the database.
type Check func(ctx context.Context) error

// Monitor derives health from the task registry and error counters.
type Monitor struct {
	tasks      TaskSource
	errors     ErrorCounter
	maxRetries int
	checks     map[string]Check
	clock      clock.Clock
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(tasks TaskSource, errors ErrorCounter, maxRetries int) *Monitor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Monitor{
		tasks:      tasks,
		errors:     errors,
		maxRetries: maxRetries,
		checks:     make(map[string]Check),
		clock:      clock.New(),
		cacheTTL:   10 * time.Second,
	}
}

// SetClock replaces the time source.
func (m *Monitor) SetClock(c clock.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = c
}

// AddCheck registers a dependency probe.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
	m.lastCheck = time.Time{}
}

// CheckHealth evaluates every task and dependency. Results are cached briefly
// so scrapes do not hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.cacheTTL {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Tasks:        make(map[string]TaskHealth),
	}

	for _, t := range m.tasks.Tasks() {
		th := TaskHealth{
			Name:        t.Name,
			Status:      StatusHealthy,
			Retries:     t.Retries,
			Busy:        t.Busy,
			Quarantined: t.Quarantined,
			Interval:    t.Interval.String(),
		}
		if t.HasRun() {
			last := t.LastRun
			th.LastRun = &last
		}
		if m.errors != nil {
			th.ErrorCount = m.errors(t.Name)
		}

		// Past the retry threshold, or stopped by the retry cap, the task has
		// given up until its next interval.
		if th.Quarantined || th.ErrorCount > m.maxRetries {
			th.Status = StatusCritical
		} else if th.ErrorCount > 0 || th.Retries > 0 {
			th.Status = StatusDegraded
		}

		report.Tasks[t.Name] = th
		report.SystemStatus = worse(report.SystemStatus, th.Status)
	}

	if len(m.checks) > 0 {
		report.Dependencies = make(map[string]DependencyHealth, len(m.checks))
		for name, check := range m.checks {
			if err := check(ctx); err != nil {
				report.Dependencies[name] = DependencyHealth{Status: StatusCritical, Error: err.Error()}
				report.SystemStatus = StatusCritical
				continue
			}
			report.Dependencies[name] = DependencyHealth{Status: StatusHealthy}
		}
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}
