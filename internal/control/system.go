// Package control owns the arbiter's lifecycle: it wires the scheduler, the
// worker pool and the error policy to the marketplace collaborators.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vietddude/arbiter/internal/core/config"
	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/core/recovery"
	"github.com/vietddude/arbiter/internal/core/scheduler"
	"github.com/vietddude/arbiter/internal/core/worker"
	"github.com/vietddude/arbiter/internal/health"
	"github.com/vietddude/arbiter/internal/infra/notify"
	"github.com/vietddude/arbiter/internal/infra/storage"
	"github.com/vietddude/arbiter/internal/report"
)

// Deps are the externally constructed parts of a System.
type Deps struct {
	Repos         storage.Repositories
	Collaborators Collaborators
	Notifier      notify.Notifier // nil disables alerts

	// Closers are released on shutdown, in order, after the collaborators.
	Closers []NamedCloser

	// Checks are dependency probes reported by the health endpoint.
	Checks map[string]health.Check

	// Snapshot, when set, receives the error counters periodically.
	Snapshot SnapshotWriter

	// Background runs for the lifetime of a Start call, e.g. DB metrics collection.
	Background []func(ctx context.Context)
}

// NamedCloser is a resource released on shutdown.
type NamedCloser struct {
	Name   string
	Closer io.Closer
}

// SnapshotWriter persists the error counters for other processes.
type SnapshotWriter interface {
	Save(ctx context.Context, records []recovery.Record) error
}

// System is the arbiter facade.
type System struct {
	cfg      *config.AppConfig
	deps     Deps
	registry *scheduler.Registry
	queue    *scheduler.Queue
	loop     *scheduler.Loop
	pool     *worker.Pool
	engine   *recovery.Engine
	reports  *report.Builder
	monitor  *health.Monitor
	server   *health.Server
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	loopDone chan struct{}
	bg       sync.WaitGroup

	shutdownMu sync.Mutex
}

// New assembles a System from configuration and dependencies.
func New(cfg *config.AppConfig, deps Deps) *System {
	engine := recovery.NewEngine(cfg.ErrorHandling, deps.Notifier)
	registry := scheduler.NewRegistry()
	queue := scheduler.NewQueue()

	strategy := recovery.NewStrategy(
		cfg.ErrorHandling.Backoff,
		cfg.Scheduler.RetryDelay,
		cfg.ErrorHandling.MaxBackoff,
	)
	pool := worker.NewPool(worker.Config{
		Workers:     cfg.Scheduler.NumWorkers,
		RetryCap:    cfg.Scheduler.RetryCap,
		JoinTimeout: cfg.Scheduler.JoinTimeout,
		TaskTimeout: cfg.Scheduler.TaskTimeout,
	}, registry, queue, engine, strategy)

	monitor := health.NewMonitor(registry, func(task string) int {
		return engine.Count(worker.TaskKey(task))
	}, engine.MaxRetries())
	for name, check := range deps.Checks {
		monitor.AddCheck(name, check)
	}

	s := &System{
		cfg:      cfg,
		deps:     deps,
		registry: registry,
		queue:    queue,
		loop:     scheduler.NewLoop(registry, queue, cfg.Scheduler.Tick),
		pool:     pool,
		engine:   engine,
		monitor:  monitor,
		log:      slog.Default().With("component", "system"),
		state:    StateInitialized,
	}
	if deps.Repos.Profits != nil {
		s.reports = report.NewBuilder(deps.Repos.Profits, engine.Report)
	}
	return s
}

// State returns the current lifecycle state.
func (s *System) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Engine exposes the error policy engine.
func (s *System) Engine() *recovery.Engine {
	return s.engine
}

// Tasks returns the registered tasks in registration order.
func (s *System) Tasks() []domain.Task {
	return s.registry.Tasks()
}

// Start logs in, registers the tasks and runs the scheduler until ctx is
// cancelled, Shutdown is called or the scheduler loop fails. The system is
// shut down before Start returns.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInitialized && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	loopDone := s.loopDone
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Info("Starting arbitrage system")

	s.login(runCtx)

	if err := s.registerTasks(); err != nil {
		close(loopDone)
		_ = s.Shutdown()
		return err
	}

	// Shutdown may have run while login was blocked. Everything below is
	// launched under s.mu so a concurrent Shutdown sees all of it or none.
	s.mu.Lock()
	if s.state != StateRunning || runCtx.Err() != nil {
		s.mu.Unlock()
		close(loopDone)
		s.log.Info("Shutdown requested during startup, not starting workers")
		return nil
	}

	// A stopped http.Server cannot be restarted, so every run gets a fresh one.
	if s.cfg.Server.Port > 0 {
		server := health.NewServer(s.monitor, s.cfg.Server.Port)
		s.server = server
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("Health server failed", "error", err)
			}
		}()
	}
	for _, fn := range s.deps.Background {
		s.bg.Add(1)
		go func(fn func(context.Context)) {
			defer s.bg.Done()
			fn(runCtx)
		}(fn)
	}
	if s.deps.Snapshot != nil {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.runSnapshots(runCtx)
		}()
	}

	s.pool.Start(runCtx)
	s.mu.Unlock()

	err := s.loop.Run(runCtx)
	close(loopDone)

	if err != nil {
		s.log.Error("System error", "error", err)
	} else {
		s.log.Info("System shutdown requested")
	}

	if shutdownErr := s.Shutdown(); shutdownErr != nil {
		s.log.Warn("Shutdown finished with errors", "error", shutdownErr)
	}
	return err
}

// Shutdown stops the scheduler and workers and releases every resource.
// It is safe to call more than once and from any goroutine.
func (s *System) Shutdown() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	cancel, loopDone, server := s.cancel, s.loopDone, s.server
	s.server = nil
	s.mu.Unlock()

	s.log.Info("Shutting down arbitrage system")

	if cancel != nil {
		cancel()
	}
	if loopDone != nil {
		select {
		case <-loopDone:
		case <-time.After(s.cfg.Scheduler.JoinTimeout + s.cfg.Scheduler.Tick):
			s.log.Warn("Scheduler loop did not exit in time")
		}
	}
	if !s.pool.Stop() {
		s.log.Warn("Some workers were still running at shutdown")
	}
	s.bg.Wait()

	var result *multierror.Error

	if server != nil {
		ctx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("health server: %w", err))
		}
		cancelStop()
	}

	if f := s.deps.Collaborators.Fulfiller; f != nil {
		if err := f.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("fulfiller: %w", err))
		}
	}

	for _, c := range s.deps.Closers {
		if err := c.Closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	// Resources are released once; a restarted system runs without them.
	s.deps.Closers = nil

	s.mu.Lock()
	s.state = StateStopped
	s.cancel = nil
	s.mu.Unlock()

	s.log.Info("Arbitrage system shutdown complete")
	return result.ErrorOrNil()
}

// Report renders the profit report for the last days days with the error table.
func (s *System) Report(ctx context.Context, days int) (string, error) {
	if s.reports == nil {
		return "", fmt.Errorf("reporting requires profit storage")
	}
	return s.reports.Build(ctx, days)
}

// Health returns the current health report.
func (s *System) Health(ctx context.Context) health.HealthReport {
	return s.monitor.CheckHealth(ctx)
}

func (s *System) login(ctx context.Context) {
	f := s.deps.Collaborators.Fulfiller
	creds := s.cfg.Credentials
	if f == nil || creds.Empty() {
		return
	}

	ok, err := f.Login(ctx, creds)
	switch {
	case err != nil:
		s.engine.Handle(ctx, err, "System", "login", map[string]any{"email": creds.Email})
	case !ok:
		s.log.Error("Login rejected", "email", creds.Email)
	default:
		s.log.Info("Logged in", "email", creds.Email)
	}
}

func (s *System) registerTasks() error {
	actions := s.deps.Collaborators.taskActions(s.cfg.Scheduler.ListLimit)

	known := make(map[string]bool, len(taskOrder))
	for _, name := range taskOrder {
		known[name] = true
		action, ok := actions[name]
		if !ok {
			s.log.Warn("Task disabled, collaborator missing", "task", name)
			continue
		}
		if err := s.registry.Register(name, action, s.cfg.Scheduler.Interval(name)); err != nil {
			return fmt.Errorf("failed to register task %s: %w", name, err)
		}
	}

	var unknown []string
	for name := range s.cfg.Scheduler.TaskIntervals {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		s.log.Warn("Ignoring interval for unknown task", "task", name)
	}

	s.log.Info("Tasks registered", "count", s.registry.Len())
	return nil
}

func (s *System) runSnapshots(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	save := func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.deps.Snapshot.Save(saveCtx, s.engine.Report()); err != nil {
			s.log.Warn("Failed to save error snapshot", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			save()
			return
		case <-ticker.C:
			save()
		}
	}
}
