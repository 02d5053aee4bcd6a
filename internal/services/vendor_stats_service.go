package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/shopmart/api/internal/repositories"
)

const (
	statsEventApplied   = "vendor.stats.applied"
	statsEventDuplicate = "vendor.stats.duplicate"
	statsEventPublished = "vendor.stats.published"

	defaultStatsAttempts = 3
	defaultStatsBackoff  = 200 * time.Millisecond
)

// ErrVendorStatsInvalidEvent indicates an event is missing its identity fields.
var ErrVendorStatsInvalidEvent = errors.New("vendor stats: invalid event")

// VendorStatsServiceDeps enumerates collaborators required to construct the stats service.
type VendorStatsServiceDeps struct {
	Vendors repositories.VendorRepository
	// Publisher hands increments to a broker. When nil, increments are applied inline.
	Publisher   VendorStatsPublisher
	MaxAttempts int
	Backoff     time.Duration
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type vendorStatsService struct {
	vendors     repositories.VendorRepository
	publisher   VendorStatsPublisher
	maxAttempts int
	backoff     time.Duration
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewVendorStatsService wires dependencies into a VendorStatsService implementation.
func NewVendorStatsService(deps VendorStatsServiceDeps) (VendorStatsService, error) {
	if deps.Vendors == nil {
		return nil, errors.New("vendor stats service: vendor repository is required")
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultStatsAttempts
	}
	wait := deps.Backoff
	if wait <= 0 {
		wait = defaultStatsBackoff
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &vendorStatsService{
		vendors:     deps.Vendors,
		publisher:   deps.Publisher,
		maxAttempts: attempts,
		backoff:     wait,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// VendorStatsKey identifies one vendor's share of one order.
func VendorStatsKey(orderID, vendorID string) string {
	return orderID + ":" + vendorID
}

func (s *vendorStatsService) RecordOrder(ctx context.Context, order Order) error {
	revenue := order.VendorRevenue()
	now := s.clock()

	var errs []error
	for _, vendorID := range order.VendorIDs() {
		event := VendorStatsEvent{
			EventID:        s.newID(),
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			VendorID:       vendorID,
			Orders:         1,
			Revenue:        revenue[vendorID],
			OccurredAt:     now,
			IdempotencyKey: VendorStatsKey(order.ID, vendorID),
		}

		if s.publisher == nil {
			if err := s.Apply(ctx, event); err != nil {
				errs = append(errs, fmt.Errorf("vendor %s: %w", vendorID, err))
			}
			continue
		}

		messageID, err := s.publisher.PublishVendorStats(ctx, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish vendor %s: %w", vendorID, err))
			continue
		}
		s.logger(ctx, statsEventPublished, map[string]any{
			"orderId":   order.ID,
			"vendorId":  vendorID,
			"messageId": messageID,
		})
	}
	return errors.Join(errs...)
}

func (s *vendorStatsService) Apply(ctx context.Context, event VendorStatsEvent) error {
	vendorID := strings.TrimSpace(event.VendorID)
	key := strings.TrimSpace(event.IdempotencyKey)
	if vendorID == "" || strings.TrimSpace(event.OrderID) == "" {
		return fmt.Errorf("%w: order and vendor are required", ErrVendorStatsInvalidEvent)
	}
	if key == "" {
		key = VendorStatsKey(event.OrderID, vendorID)
	}
	inc := repositories.VendorStatsIncrement{Orders: event.Orders, Revenue: event.Revenue}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(s.backoff),
			backoff.WithMaxElapsedTime(0),
		), uint64(s.maxAttempts-1)),
		ctx,
	)

	var applied bool
	err := backoff.Retry(func() error {
		var err error
		applied, err = s.vendors.IncrementStats(ctx, key, vendorID, inc)
		if err == nil {
			return nil
		}
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrVendorNotFound, err))
		}
		return err
	}, policy)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"orderId":  event.OrderID,
		"vendorId": vendorID,
		"key":      key,
	}
	if !applied {
		s.logger(ctx, statsEventDuplicate, fields)
		return nil
	}
	fields["orders"] = inc.Orders
	fields["revenue"] = inc.Revenue
	s.logger(ctx, statsEventApplied, fields)
	return nil
}
