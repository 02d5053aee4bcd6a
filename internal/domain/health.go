package domain

import "time"

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthReport aggregates dependency probes for readiness endpoints.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	Version     string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// HealthCheck is the outcome of probing one dependency.
type HealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}
