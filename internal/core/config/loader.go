package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/arbiter/internal/core/recovery"
)

// Load reads configuration from a YAML file. A .env file next to it, or in the
// working directory, is loaded first so ${VARS} in the YAML can refer to it.
func Load(path string) (*AppConfig, error) {
	loadDotEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func loadDotEnv(configPath string) {
	for _, p := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		err := godotenv.Load(p)
		if err == nil {
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load env file", "path", p, "error", err)
		}
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	s := &cfg.Scheduler
	if s.TaskIntervals == nil {
		s.TaskIntervals = make(map[string]int)
	}
	for name, minutes := range DefaultTaskIntervals() {
		if _, ok := s.TaskIntervals[name]; !ok {
			s.TaskIntervals[name] = minutes
		}
	}
	if s.NumWorkers == 0 {
		s.NumWorkers = 3
	}
	if s.Tick == 0 {
		s.Tick = time.Second
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = 60 * time.Second
	}
	// Negative disables the cap.
	if s.RetryCap == 0 {
		s.RetryCap = 10
	}
	if s.JoinTimeout == 0 {
		s.JoinTimeout = time.Second
	}
	if s.ListLimit == 0 {
		s.ListLimit = 20
	}

	eh := &cfg.ErrorHandling
	d := recovery.DefaultConfig()
	if eh.MaxRetries == 0 {
		eh.MaxRetries = d.MaxRetries
	}
	if eh.Backoff == "" {
		eh.Backoff = d.Backoff
	}
	if eh.MaxBackoff == 0 {
		eh.MaxBackoff = d.MaxBackoff
	}
	if eh.NotifyTimeout == 0 {
		eh.NotifyTimeout = d.NotifyTimeout
	}

	if cfg.Email.SMTPServer == "" {
		cfg.Email.SMTPServer = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}

	if cfg.Alerts.PerMinute == 0 {
		cfg.Alerts.PerMinute = 6
	}
	if cfg.Alerts.Burst == 0 {
		cfg.Alerts.Burst = 3
	}
	if cfg.Alerts.FeedSize == 0 {
		cfg.Alerts.FeedSize = 100
	}
}

// Validate rejects settings the scheduler cannot run with.
func (c *AppConfig) Validate() error {
	for name, minutes := range c.Scheduler.TaskIntervals {
		if minutes <= 0 {
			return fmt.Errorf("invalid interval for task %s: %d minutes", name, minutes)
		}
	}
	if c.Scheduler.NumWorkers < 0 {
		return fmt.Errorf("invalid num_workers: %d", c.Scheduler.NumWorkers)
	}
	if c.ErrorHandling.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d", c.ErrorHandling.MaxRetries)
	}
	switch c.ErrorHandling.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("unknown backoff strategy: %s", c.ErrorHandling.Backoff)
	}
	switch c.Database.Driver {
	case "", "pgx", "postgres":
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}
	return nil
}
