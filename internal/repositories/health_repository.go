package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/shopmart/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck describes a dependency probe executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthRepository reports the status of downstream dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

// HealthOption customises the dependency-backed health repository.
type HealthOption func(*dependencyHealth)

// WithProbeTimeout overrides the timeout applied when a check omits its own.
func WithProbeTimeout(timeout time.Duration) HealthOption {
	return func(h *dependencyHealth) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithHealthClock injects a clock, mostly for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *dependencyHealth) {
		if clock != nil {
			h.now = clock
		}
	}
}

type dependencyHealth struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

// NewDependencyHealthRepository runs every check concurrently on Collect.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...HealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	h := &dependencyHealth{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

func (h *dependencyHealth) Collect(ctx context.Context) (domain.HealthReport, error) {
	if ctx == nil {
		return domain.HealthReport{}, errors.New("health repository: context is required")
	}

	results := make(map[string]domain.HealthCheck, len(h.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range h.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := h.probe(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.HealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: h.now(),
	}, nil
}

func (h *dependencyHealth) probe(ctx context.Context, check DependencyCheck) domain.HealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = h.timeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := h.now()
	err := check.Check(checkCtx)
	end := h.now()

	result := domain.HealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	switch {
	case err == nil && checkCtx.Err() == nil:
	case errors.Is(err, context.DeadlineExceeded) || (err == nil && checkCtx.Err() != nil):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
	}
	return result
}
