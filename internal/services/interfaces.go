package services

import (
	"context"
	"time"

	domain "github.com/shopmart/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order         = domain.Order
	OrderLineItem = domain.OrderLineItem
	OrderStatus   = domain.OrderStatus
	TimelineEntry = domain.TimelineEntry
	ShippingInfo  = domain.ShippingInfo
	Product       = domain.Product
)

// OrderService drives order creation and the order status state machine.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.Page[Order], error)
	GetOrder(ctx context.Context, orderID string, requester Requester) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	UpdatePayment(ctx context.Context, cmd UpdatePaymentCommand) (Order, error)
	TrackOrder(ctx context.Context, orderNumber string) (OrderTracking, error)
	UpdateOrderItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (Order, error)
	ListVendorOrders(ctx context.Context, query VendorOrdersQuery) (domain.Page[Order], error)
	AdminListOrders(ctx context.Context, query AdminOrdersQuery) (domain.Page[Order], error)
	AdminSetOrderStatus(ctx context.Context, cmd AdminSetStatusCommand) (Order, error)
}

// InventoryService exposes manual stock reconciliation for administrators.
type InventoryService interface {
	AdjustInventory(ctx context.Context, cmd AdjustInventoryCommand) (Product, error)
}

// VendorStatsService maintains vendor order and revenue counters.
type VendorStatsService interface {
	// RecordOrder emits one increment per distinct vendor of a committed order.
	RecordOrder(ctx context.Context, order Order) error
	// Apply writes a single increment, retrying transient failures.
	Apply(ctx context.Context, event VendorStatsEvent) error
}

// SystemService reports dependency health for readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.HealthReport, error)
}

// OrderMetrics receives lifecycle counters. Implementations must be safe for concurrent use.
type OrderMetrics interface {
	OrderCreated()
	OrderTransitioned(to OrderStatus)
	VendorStatsFailed()
	LowStock(productID string)
}

// Requester identifies who is reading an order.
type Requester struct {
	UserID string
	Admin  bool
	Vendor bool
}

// AddressInput is the caller-supplied postal address.
type AddressInput struct {
	FullName string `json:"fullName" validate:"required"`
	Street   string `json:"street" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	ZipCode  string `json:"zipCode" validate:"required"`
	Country  string `json:"country" validate:"required"`
	Phone    string `json:"phone"`
}

// CreateOrderItem requests a quantity of one product.
type CreateOrderItem struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// CreateOrderCommand is the input to CreateOrder.
type CreateOrderCommand struct {
	CustomerID      string               `json:"customer" validate:"required"`
	Items           []CreateOrderItem    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress AddressInput         `json:"shippingAddress"`
	BillingAddress  *AddressInput        `json:"billingAddress" validate:"omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"payment.method" validate:"payment_method"`
	CustomerNote    string               `json:"notes.customer" validate:"max=1000"`
}

// ListOrdersQuery pages through a customer's orders.
type ListOrdersQuery struct {
	CustomerID string
	Status     OrderStatus
	Page       int
	Limit      int
}

// VendorOrdersQuery pages through orders containing a vendor's items.
type VendorOrdersQuery struct {
	VendorUserID string
	ItemStatus   OrderStatus
	Page         int
	Limit        int
}

// AdminOrdersQuery pages through all orders.
type AdminOrdersQuery struct {
	Status OrderStatus
	Search string
	Page   int
	Limit  int
}

// CancelOrderCommand cancels a customer's own order.
type CancelOrderCommand struct {
	OrderID    string
	CustomerID string
}

// UpdatePaymentCommand records a payment status reported by the customer.
type UpdatePaymentCommand struct {
	OrderID         string
	CustomerID      string
	Status          domain.PaymentStatus
	TransactionID   *string
	PaymentIntentID *string
}

// UpdateItemStatusCommand moves one vendor-owned line item.
type UpdateItemStatusCommand struct {
	OrderID        string
	ItemID         string
	VendorUserID   string
	Status         OrderStatus
	TrackingNumber *string
}

// AdminSetStatusCommand overrides an order status.
type AdminSetStatusCommand struct {
	OrderID string
	ActorID string
	Status  OrderStatus
	Reason  string
	// Restock returns inventory when moving to cancelled or returned.
	Restock bool
}

// AdjustInventoryCommand changes a product's stock by a signed delta.
type AdjustInventoryCommand struct {
	ProductID string
	Delta     int
	ActorID   string
	Reason    string
}

// OrderTracking is the public view of an order's progress.
type OrderTracking struct {
	OrderNumber string
	Status      OrderStatus
	Timeline    []TimelineEntry
	Shipping    ShippingInfo
	Items       []TrackedItem
}

// TrackedItem is the public view of a line item.
type TrackedItem struct {
	Title          string
	VendorID       string
	VendorName     string
	Status         OrderStatus
	TrackingNumber string
}

// VendorStatsEvent carries one vendor's share of an order.
type VendorStatsEvent struct {
	EventID        string    `json:"eventId"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	VendorID       string    `json:"vendorId"`
	Orders         int64     `json:"orders"`
	Revenue        int64     `json:"revenue"`
	OccurredAt     time.Time `json:"occurredAt"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// VendorStatsPublisher hands vendor stats events to a message broker.
type VendorStatsPublisher interface {
	PublishVendorStats(ctx context.Context, event VendorStatsEvent) (string, error)
}
