package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version   string
	StartedAt time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
	// CacheTTL reuses the last dependency probe for this long. Zero probes on every call.
	CacheTTL time.Duration
}

type systemService struct {
	health   repositories.HealthRepository
	clock    func() time.Time
	build    BuildInfo
	cacheTTL time.Duration

	probes   singleflight.Group
	mu       sync.Mutex
	last     domain.HealthReport
	lastTime time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service behind the readiness endpoint. Concurrent readiness
// probes share one dependency sweep.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc := &systemService{
		health:   deps.HealthRepository,
		clock:    func() time.Time { return clock().UTC() },
		build:    deps.Build,
		cacheTTL: deps.CacheTTL,
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.clock()
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (domain.HealthReport, error) {
	if ctx == nil {
		return domain.HealthReport{}, errors.New("system service: context is required")
	}
	now := s.clock()

	if report, ok := s.cached(now); ok {
		return s.decorate(report, now), nil
	}

	v, err, _ := s.probes.Do("health", func() (any, error) {
		report, err := s.health.Collect(ctx)
		if err != nil {
			return domain.HealthReport{}, err
		}
		s.mu.Lock()
		s.last, s.lastTime = report, s.clock()
		s.mu.Unlock()
		return report, nil
	})
	if err != nil {
		return domain.HealthReport{}, err
	}
	return s.decorate(v.(domain.HealthReport), now), nil
}

func (s *systemService) cached(now time.Time) (domain.HealthReport, bool) {
	if s.cacheTTL <= 0 {
		return domain.HealthReport{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTime.IsZero() || now.Sub(s.lastTime) >= s.cacheTTL {
		return domain.HealthReport{}, false
	}
	return s.last, true
}

// decorate fills build metadata and the overall status on a copy of report.
func (s *systemService) decorate(report domain.HealthReport, now time.Time) domain.HealthReport {
	checks := make(map[string]domain.HealthCheck, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = check
	}
	report.Checks = checks
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Status == "" {
		report.Status = overallStatus(checks)
	}
	return report
}

// overallStatus is error if any check errored, degraded if any check is not ok, else ok.
func overallStatus(checks map[string]domain.HealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusOK, "":
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
