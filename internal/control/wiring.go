package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/arbiter/internal/core/config"
	"github.com/vietddude/arbiter/internal/health"
	"github.com/vietddude/arbiter/internal/infra/notify"
	redisclient "github.com/vietddude/arbiter/internal/infra/redis"
	"github.com/vietddude/arbiter/internal/infra/storage"
	"github.com/vietddude/arbiter/internal/infra/storage/memory"
	"github.com/vietddude/arbiter/internal/infra/storage/postgres"
	"github.com/vietddude/arbiter/internal/market/gateway"
	"github.com/vietddude/arbiter/internal/market/pricing"
)

// Build connects storage, Redis and the marketplace gateway described by cfg
// and returns a ready System.
func Build(ctx context.Context, cfg *config.AppConfig) (*System, error) {
	var deps Deps
	deps.Checks = make(map[string]health.Check)

	// 1. Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		deps.Repos = db.Repositories()
		deps.Closers = append(deps.Closers, NamedCloser{Name: "database", Closer: db})
		deps.Checks["database"] = db.Health
		deps.Background = append(deps.Background, db.StartMetricsCollector)
		slog.Info("Using PostgreSQL storage", "driver", driverName(cfg.Database))
	} else {
		deps.Repos = memory.NewMemoryStorage().Repositories()
		slog.Info("Using Memory storage")
	}

	// 2. Alerts
	var notifiers notify.Multi
	if cfg.Email.Enabled {
		notifiers = append(notifiers, notify.NewSMTP(cfg.Email))
		slog.Info("Email alerts enabled", "to", cfg.Email.ToEmail)
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			closeAll(deps.Closers)
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		notifiers = append(notifiers, redisclient.NewAlertFeed(rc, cfg.Alerts.FeedSize))
		deps.Snapshot = redisclient.NewErrorSnapshot(rc)
		deps.Checks["redis"] = rc.Health
		deps.Closers = append(deps.Closers, NamedCloser{Name: "redis", Closer: rc})
	}

	if len(notifiers) > 0 {
		deps.Notifier = notify.NewThrottled(notifiers, cfg.Alerts.PerMinute, cfg.Alerts.Burst)
	}

	// 3. Marketplace collaborators
	pricer := pricing.New(cfg.Pricing, deps.Repos.Products)
	deps.Collaborators = newCollaborators(cfg.Marketplace, deps.Repos, pricer)

	return New(cfg, deps), nil
}

func newCollaborators(cfg gateway.Config, repos storage.Repositories, pricer *pricing.Calculator) Collaborators {
	c := Collaborators{Pricer: pricer}
	if cfg.BaseURL == "" {
		slog.Warn("Marketplace gateway not configured, only pricing will run")
		return c
	}

	client := gateway.NewClient(cfg, repos, pricer)
	c.Finder = client
	c.Lister = client
	c.Fulfiller = client
	return c
}

func driverName(cfg postgres.Config) string {
	if cfg.Driver == "" {
		return "pgx"
	}
	return cfg.Driver
}

func closeAll(closers []NamedCloser) {
	for _, c := range closers {
		if err := c.Closer.Close(); err != nil {
			slog.Warn("Failed to close resource", "name", c.Name, "error", err)
		}
	}
}
