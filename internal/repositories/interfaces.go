package repositories

import (
	"context"

	domain "github.com/shopmart/api/internal/domain"
)

// OrderCounterID names the sequence that backs order numbers.
const OrderCounterID = "orders"

// Registry exposes typed repository accessors for one storage backend.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Catalog() CatalogRepository
	Vendors() VendorRepository
	Ping(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders. Placement and updates are atomic with the
// inventory changes they carry.
type OrderRepository interface {
	// Place reserves stock, draws the next order number and inserts the order in one
	// transaction. Returns *InventoryError when a tracked product cannot cover its
	// reservation and a conflict RepositoryError when the order number is taken.
	Place(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	// Update replaces the order when the stored version equals ExpectedVersion,
	// applying Restock adjustments in the same transaction.
	Update(ctx context.Context, req OrderUpdateRequest) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
}

// PlaceOrderRequest carries a fully priced order plus the stock it consumes.
type PlaceOrderRequest struct {
	Order        domain.Order
	Reservations []domain.InventoryAdjustment
	// OrderNumber formats the drawn sequence value.
	OrderNumber func(seq int64) string
}

// PlaceOrderResult returns the stored order and post-reservation stock levels.
type PlaceOrderResult struct {
	Order    domain.Order
	Products []domain.Product
}

// OrderUpdateRequest replaces an order under optimistic concurrency control.
type OrderUpdateRequest struct {
	Order           domain.Order
	ExpectedVersion int64
	Restock         []domain.InventoryAdjustment
}

// OrderListFilter narrows order listings. Empty fields do not filter.
type OrderListFilter struct {
	CustomerID string
	VendorID   string
	Status     domain.OrderStatus
	// ItemStatus matches orders with at least one item in this status. Combined with
	// VendorID it is evaluated against all items, not only the vendor's.
	ItemStatus domain.OrderStatus
	// NumberSearch is a case-insensitive substring of the order number.
	NumberSearch string
	Page         int
	Limit        int
}

// CatalogRepository is the order subsystem's view of the product catalog.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
	// AdjustInventory applies delta atomically and returns the updated product.
	// Tracked products never drop below zero.
	AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error)
}

// VendorStatsIncrement is the change applied to a vendor's counters for one order.
type VendorStatsIncrement struct {
	Orders  int64
	Revenue int64
}

// VendorRepository resolves vendor profiles and maintains their counters.
type VendorRepository interface {
	FindByID(ctx context.Context, vendorID string) (domain.Vendor, error)
	FindByOwner(ctx context.Context, userID string) (domain.Vendor, error)
	// IncrementStats applies inc once per key. Replays of the same key are no-ops
	// reporting applied=false.
	IncrementStats(ctx context.Context, key, vendorID string, inc VendorStatsIncrement) (applied bool, err error)
}
