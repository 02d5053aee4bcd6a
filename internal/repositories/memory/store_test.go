package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
)

func formatNumber(seq int64) string { return fmt.Sprintf("ORD%06d", seq) }

func seededStore(stock int) *Store {
	s := NewStore()
	s.PutProduct(domain.Product{
		ID:        "prod_1",
		VendorID:  "vendor_1",
		Title:     "Lamp",
		Price:     2500,
		Status:    domain.ProductStatusActive,
		Inventory: domain.ProductInventory{Quantity: stock, TrackQuantity: true, LowStockThreshold: 1},
	})
	s.PutVendor(domain.Vendor{ID: "vendor_1", UserID: "user_v1", StoreName: "Lights"})
	return s
}

func placeRequest(id string, qty int, created time.Time) repositories.PlaceOrderRequest {
	return repositories.PlaceOrderRequest{
		Order: domain.Order{
			ID:         id,
			CustomerID: "cust_1",
			Items:      []domain.OrderLineItem{{ID: id + "_item", ProductID: "prod_1", VendorID: "vendor_1", Quantity: qty}},
			Status:     domain.OrderStatusPending,
			CreatedAt:  created,
		},
		Reservations: []domain.InventoryAdjustment{{ProductID: "prod_1", Delta: -qty}},
		OrderNumber:  formatNumber,
	}
}

func TestPlace_DecrementsStockAndAssignsNumber(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	res, err := s.Orders().Place(ctx, placeRequest("ord_1", 3, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "ORD000001", res.Order.OrderNumber)
	assert.Equal(t, int64(1), res.Order.Version)
	require.Len(t, res.Products, 1)
	assert.Equal(t, 2, res.Products[0].Inventory.Quantity)

	product, err := s.Catalog().FindProduct(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Inventory.Quantity)
}

func TestPlace_InsufficientStockLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	s := seededStore(2)

	_, err := s.Orders().Place(ctx, placeRequest("ord_1", 3, time.Now()))
	invErr, ok := repositories.AsInventoryError(err)
	require.True(t, ok, "expected inventory error, got %v", err)
	assert.Equal(t, repositories.InventoryErrorInsufficientStock, invErr.Code)
	assert.Equal(t, 2, invErr.Available)

	product, _ := s.Catalog().FindProduct(ctx, "prod_1")
	assert.Equal(t, 2, product.Inventory.Quantity)
	_, err = s.Orders().FindByID(ctx, "ord_1")
	assert.Error(t, err)

	// the failed attempt must not burn a sequence value
	res, err := s.Orders().Place(ctx, placeRequest("ord_2", 1, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "ORD000001", res.Order.OrderNumber)
}

func TestPlace_NumberCollisionConsumesSequence(t *testing.T) {
	ctx := context.Background()
	s := seededStore(10)
	_, err := s.Orders().Place(ctx, placeRequest("ord_1", 1, time.Now()))
	require.NoError(t, err)

	s.SetCounter(repositories.OrderCounterID, 0)
	_, err = s.Orders().Place(ctx, placeRequest("ord_2", 1, time.Now()))
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	res, err := s.Orders().Place(ctx, placeRequest("ord_2", 1, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "ORD000002", res.Order.OrderNumber)
}

func TestUpdate_OptimisticVersionAndRestock(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)
	res, err := s.Orders().Place(ctx, placeRequest("ord_1", 3, time.Now()))
	require.NoError(t, err)

	order := res.Order
	order.AppendTimeline(domain.OrderStatusCancelled, "cancelled", "cust_1", time.Now())
	order.InventoryRestored = true

	updated, err := s.Orders().Update(ctx, repositories.OrderUpdateRequest{
		Order:           order,
		ExpectedVersion: 1,
		Restock:         order.StockReturns(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)

	product, _ := s.Catalog().FindProduct(ctx, "prod_1")
	assert.Equal(t, 5, product.Inventory.Quantity)

	_, err = s.Orders().Update(ctx, repositories.OrderUpdateRequest{Order: order, ExpectedVersion: 1})
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())
}

func TestList_FiltersSortsAndPages(t *testing.T) {
	ctx := context.Background()
	s := seededStore(100)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		_, err := s.Orders().Place(ctx, placeRequest(fmt.Sprintf("ord_%d", i), 1, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	page, err := s.Orders().List(ctx, repositories.OrderListFilter{CustomerID: "cust_1", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ord_5", page.Items[0].ID)
	assert.True(t, page.HasNext())
	assert.False(t, page.HasPrev())

	last, err := s.Orders().List(ctx, repositories.OrderListFilter{VendorID: "vendor_1", Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "ord_1", last.Items[0].ID)

	search, err := s.Orders().List(ctx, repositories.OrderListFilter{NumberSearch: "ord000003", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, "ORD000003", search.Items[0].OrderNumber)

	none, err := s.Orders().List(ctx, repositories.OrderListFilter{Status: domain.OrderStatusShipped, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}

func TestIncrementStats_AppliesOncePerKey(t *testing.T) {
	ctx := context.Background()
	s := seededStore(1)
	vendors := s.Vendors()

	applied, err := vendors.IncrementStats(ctx, "ord_1:vendor_1", "vendor_1", repositories.VendorStatsIncrement{Orders: 1, Revenue: 2500})
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = vendors.IncrementStats(ctx, "ord_1:vendor_1", "vendor_1", repositories.VendorStatsIncrement{Orders: 1, Revenue: 2500})
	require.NoError(t, err)
	assert.False(t, applied)

	vendor, err := vendors.FindByOwner(ctx, "user_v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VendorStats{TotalOrders: 1, TotalRevenue: 2500}, vendor.Stats)
}

func TestAdjustInventory_RejectsNegativeTrackedStock(t *testing.T) {
	ctx := context.Background()
	s := seededStore(1)

	_, err := s.Catalog().AdjustInventory(ctx, "prod_1", -2)
	_, ok := repositories.AsInventoryError(err)
	require.True(t, ok)

	product, err := s.Catalog().AdjustInventory(ctx, "prod_1", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, product.Inventory.Quantity)
}

func TestPlace_ConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := seededStore(10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{})
		failed  int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Orders().Place(ctx, placeRequest(fmt.Sprintf("ord_%02d", i), 1, time.Now()))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			numbers[res.Order.OrderNumber] = struct{}{}
		}(i)
	}
	wg.Wait()

	assert.Len(t, numbers, 10)
	assert.Equal(t, 15, failed)
	product, _ := s.Catalog().FindProduct(ctx, "prod_1")
	assert.Equal(t, 0, product.Inventory.Quantity)
}
