package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
	"github.com/shopmart/api/internal/repositories/memory"
)

type capturePublisher struct {
	events []VendorStatsEvent
	err    error
}

func (p *capturePublisher) PublishVendorStats(_ context.Context, event VendorStatsEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-" + event.VendorID, nil
}

type flakyVendorRepo struct {
	repositories.VendorRepository
	failures int
	calls    int
}

func (r *flakyVendorRepo) IncrementStats(ctx context.Context, key, vendorID string, inc repositories.VendorStatsIncrement) (bool, error) {
	r.calls++
	if r.calls <= r.failures {
		return false, errors.New("deadline exceeded")
	}
	return r.VendorRepository.IncrementStats(ctx, key, vendorID, inc)
}

func statsOrder() Order {
	return Order{
		ID:          "ord_1",
		OrderNumber: "ORD000001",
		Items: []OrderLineItem{
			{ID: "itm_1", VendorID: "vendor_b", Subtotal: 1500},
			{ID: "itm_2", VendorID: "vendor_a", Subtotal: 2000},
			{ID: "itm_3", VendorID: "vendor_b", Subtotal: 500},
		},
	}
}

func statsStore() *memory.Store {
	store := memory.NewStore()
	store.PutVendor(domain.Vendor{ID: "vendor_a", UserID: "user_va"})
	store.PutVendor(domain.Vendor{ID: "vendor_b", UserID: "user_vb"})
	return store
}

func TestVendorStatsRecordOrder_PublishesOnePerVendor(t *testing.T) {
	store := statsStore()
	pub := &capturePublisher{}
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{
		Vendors:     store.Vendors(),
		Publisher:   pub,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "evt" },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.RecordOrder(context.Background(), statsOrder()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	first, second := pub.events[0], pub.events[1]
	if first.VendorID != "vendor_b" || first.Revenue != 2000 || first.Orders != 1 || first.IdempotencyKey != "ord_1:vendor_b" {
		t.Fatalf("unexpected first event %+v", first)
	}
	if second.VendorID != "vendor_a" || second.Revenue != 2000 || !second.OccurredAt.Equal(now) {
		t.Fatalf("unexpected second event %+v", second)
	}

	// publishing must not touch the store directly
	vendor, _ := store.Vendors().FindByID(context.Background(), "vendor_a")
	if vendor.Stats.TotalOrders != 0 {
		t.Fatalf("expected stats untouched, got %+v", vendor.Stats)
	}
}

func TestVendorStatsRecordOrder_InlineIsIdempotent(t *testing.T) {
	store := statsStore()
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{Vendors: store.Vendors()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.RecordOrder(ctx, statsOrder()); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	vendorB, _ := store.Vendors().FindByID(ctx, "vendor_b")
	if vendorB.Stats != (domain.VendorStats{TotalOrders: 1, TotalRevenue: 2000}) {
		t.Fatalf("expected one increment, got %+v", vendorB.Stats)
	}
}

func TestVendorStatsApply_RetriesTransientFailures(t *testing.T) {
	store := statsStore()
	repo := &flakyVendorRepo{VendorRepository: store.Vendors(), failures: 2}
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{Vendors: repo, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Apply(context.Background(), VendorStatsEvent{OrderID: "ord_1", VendorID: "vendor_a", Orders: 1, Revenue: 700})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.calls)
	}
	vendor, _ := store.Vendors().FindByID(context.Background(), "vendor_a")
	if vendor.Stats.TotalRevenue != 700 {
		t.Fatalf("unexpected stats %+v", vendor.Stats)
	}
}

func TestVendorStatsApply_UnknownVendorIsPermanent(t *testing.T) {
	store := statsStore()
	repo := &flakyVendorRepo{VendorRepository: store.Vendors()}
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{Vendors: repo, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Apply(context.Background(), VendorStatsEvent{OrderID: "ord_1", VendorID: "vendor_zz", Orders: 1})
	if !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected vendor not found, got %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", repo.calls)
	}
}

func TestVendorStatsApply_RejectsIncompleteEvent(t *testing.T) {
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{Vendors: statsStore().Vendors()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Apply(context.Background(), VendorStatsEvent{VendorID: "vendor_a"}); !errors.Is(err, ErrVendorStatsInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}

func TestVendorStatsRecordOrder_JoinsPublishErrors(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	svc, err := NewVendorStatsService(VendorStatsServiceDeps{Vendors: statsStore().Vendors(), Publisher: pub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.RecordOrder(context.Background(), statsOrder()); err == nil {
		t.Fatal("expected publish error")
	}
}
