package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories/memory"
)

func inventoryStore() *memory.Store {
	store := memory.NewStore()
	store.PutProduct(domain.Product{
		ID: "prod_1", VendorID: "vendor_1", Title: "Lamp", Price: 2500, Status: domain.ProductStatusActive,
		Inventory: domain.ProductInventory{Quantity: 4, TrackQuantity: true, LowStockThreshold: 2},
	})
	return store
}

func TestAdjustInventory_AppliesDelta(t *testing.T) {
	store := inventoryStore()
	metrics := &recordingMetrics{}
	var logged map[string]any
	svc, err := NewInventoryService(InventoryServiceDeps{
		Catalog: store.Catalog(),
		Metrics: metrics,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			if event == "inventory.adjusted" {
				logged = fields
			}
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	product, err := svc.AdjustInventory(context.Background(), AdjustInventoryCommand{ProductID: "prod_1", Delta: -3, ActorID: "admin_1", Reason: "damaged"})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if product.Inventory.Quantity != 1 {
		t.Fatalf("expected 1 left, got %d", product.Inventory.Quantity)
	}
	if len(metrics.lowStock) != 1 {
		t.Fatalf("expected low stock metric, got %v", metrics.lowStock)
	}
	if logged["reason"] != "damaged" || logged["actorId"] != "admin_1" {
		t.Fatalf("unexpected log fields %v", logged)
	}
}

func TestAdjustInventory_Errors(t *testing.T) {
	svc, err := NewInventoryService(InventoryServiceDeps{Catalog: inventoryStore().Catalog()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  AdjustInventoryCommand
		want error
	}{
		{name: "missing product id", cmd: AdjustInventoryCommand{Delta: 1}, want: ErrOrderInvalidInput},
		{name: "zero delta", cmd: AdjustInventoryCommand{ProductID: "prod_1"}, want: ErrOrderInvalidInput},
		{name: "unknown product", cmd: AdjustInventoryCommand{ProductID: "prod_x", Delta: 1}, want: ErrProductNotFound},
		{name: "below zero", cmd: AdjustInventoryCommand{ProductID: "prod_1", Delta: -5}, want: ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AdjustInventory(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewInventoryService_RequiresCatalog(t *testing.T) {
	if _, err := NewInventoryService(InventoryServiceDeps{}); err == nil {
		t.Fatal("expected error")
	}
}
