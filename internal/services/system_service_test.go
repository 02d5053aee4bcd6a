package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/shopmart/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.HealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.HealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.HealthReport{
			Checks: map[string]domain.HealthCheck{
				"store":  {Status: domain.HealthStatusOK},
				"broker": {Status: domain.HealthStatusDegraded},
			},
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Version: "1.2.3", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Version != "1.2.3" || report.Uptime != 5*time.Minute || !report.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected metadata %+v", report)
	}
}

func TestSystemServiceHealthReportErrorWins(t *testing.T) {
	repo := &stubHealthRepository{report: domain.HealthReport{Checks: map[string]domain.HealthCheck{
		"store":  {Status: domain.HealthStatusError},
		"broker": {Status: domain.HealthStatusDegraded},
	}}}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
}

func TestSystemServiceHealthReportPropagatesErrors(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("boom")}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSystemServiceHealthReportReusesRecentProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubHealthRepository{report: domain.HealthReport{Checks: map[string]domain.HealthCheck{
		"store": {Status: domain.HealthStatusOK},
	}}}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		CacheTTL:         2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.HealthReport(context.Background()); err != nil {
			t.Fatalf("health report: %v", err)
		}
	}
	if repo.calls != 1 {
		t.Fatalf("expected one probe within the cache window, got %d", repo.calls)
	}

	now = now.Add(3 * time.Second)
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected a fresh probe after the window, got %d calls", repo.calls)
	}
	if report.Uptime != 3*time.Second {
		t.Fatalf("expected uptime measured from first call, got %s", report.Uptime)
	}
}
