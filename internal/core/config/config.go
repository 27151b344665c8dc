package config

import (
	"time"

	"github.com/vietddude/arbiter/internal/core/recovery"
	"github.com/vietddude/arbiter/internal/infra/notify"
	redisclient "github.com/vietddude/arbiter/internal/infra/redis"
	"github.com/vietddude/arbiter/internal/infra/storage/postgres"
	"github.com/vietddude/arbiter/internal/market"
	"github.com/vietddude/arbiter/internal/market/gateway"
	"github.com/vietddude/arbiter/internal/market/pricing"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server        ServerConfig       `yaml:"server"`
	Logging       LoggingConfig      `yaml:"logging"`
	Database      postgres.Config    `yaml:"database"`
	Redis         redisclient.Config `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	ErrorHandling recovery.Config    `yaml:"error_handling"`
	Email         notify.SMTPConfig  `yaml:"email"`
	Alerts        AlertsConfig       `yaml:"alerts"`
	Marketplace   gateway.Config     `yaml:"marketplace"`
	Pricing       pricing.Config     `yaml:"pricing"`
	Credentials   market.Credentials `yaml:"credentials"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the health server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SchedulerConfig holds task scheduling settings.
type SchedulerConfig struct {
	TaskIntervals map[string]int `yaml:"task_intervals"` // task name -> minutes
	NumWorkers    int            `yaml:"num_workers"`
	Tick          time.Duration  `yaml:"tick"`
	RetryDelay    time.Duration  `yaml:"retry_delay"`
	RetryCap      int            `yaml:"retry_cap"` // consecutive retries before quarantine, -1 = unlimited
	JoinTimeout   time.Duration  `yaml:"join_timeout"`
	ListLimit     int            `yaml:"list_limit"`   // products per list_products run
	TaskTimeout   time.Duration  `yaml:"task_timeout"` // 0 = none
}

// Interval returns the configured interval of a task.
func (s SchedulerConfig) Interval(task string) time.Duration {
	return time.Duration(s.TaskIntervals[task]) * time.Minute
}

// AlertsConfig controls alert fan-out.
type AlertsConfig struct {
	PerMinute float64 `yaml:"per_minute"` // throttle for outgoing alerts
	Burst     int     `yaml:"burst"`
	FeedSize  int     `yaml:"feed_size"` // alerts kept in Redis
}

// DefaultTaskIntervals are the stock task intervals in minutes.
func DefaultTaskIntervals() map[string]int {
	return map[string]int{
		"find_products":   720,
		"update_prices":   240,
		"list_products":   120,
		"update_listings": 120,
		"check_orders":    15,
		"process_orders":  30,
		"update_tracking": 360,
	}
}
