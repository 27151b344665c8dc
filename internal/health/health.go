// Package health provides task health monitoring and status reporting.
package health

import (
	"sort"
	"time"
)

// SystemStatus represents the health state of the system or a task.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// TaskHealth contains health details for one scheduled task.
type TaskHealth struct {
	Name        string       `json:"name"`
	Status      SystemStatus `json:"status"`
	ErrorCount  int          `json:"error_count"`
	Retries     int          `json:"retries"`
	Busy        bool         `json:"busy"`
	Quarantined bool         `json:"quarantined"`
	LastRun     *time.Time   `json:"last_run,omitempty"`
	Interval    string       `json:"interval"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus                `json:"system_status"`
	Tasks        map[string]TaskHealth       `json:"tasks"`
	Dependencies map[string]DependencyHealth `json:"dependencies,omitempty"`
}

// DependencyHealth is the result of one dependency probe.
type DependencyHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Failing lists the critical tasks, quarantined ones included, and the failed
// dependencies,
// sorted by name.
func (r HealthReport) Failing() []string {
	var out []string
	for name, th := range r.Tasks {
		if th.Status == StatusCritical {
			out = append(out, "task:"+name)
		}
	}
	for name, dep := range r.Dependencies {
		if dep.Status != StatusHealthy {
			out = append(out, "dependency:"+name)
		}
	}
	sort.Strings(out)
	return out
}

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
