package domain

import (
	"time"
)

// DefaultCurrency is the only currency orders are priced in.
const DefaultCurrency = "USD"

// Page wraps an offset-paginated result set.
type Page[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int64
}

// TotalPages reports how many pages of Limit items cover Total.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

// HasNext reports whether a page exists after the current one.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages()
}

// HasPrev reports whether a page exists before the current one.
func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

// OrderStatus enumerates lifecycle states shared by orders and their line items.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every order and line item.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates payment was completed or the order was accepted.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates vendors are preparing the goods.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the goods left the vendor.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the goods reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned indicates the goods were sent back.
	OrderStatusReturned OrderStatus = "returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// OrderStatuses returns every known order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// Valid reports whether the status is one of the known values.
func (s OrderStatus) Valid() bool {
	for _, candidate := range orderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further customer-initiated transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// PaymentStatus enumerates the payment states tracked on an order.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Valid reports whether the payment status is one of the known values.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodStripe         PaymentMethod = "stripe"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid reports whether the method is one of the accepted values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodCashOnDelivery:
		return true
	default:
		return false
	}
}

// Order is the root aggregate for a customer purchase. It owns its line items and timeline.
type Order struct {
	ID                string
	OrderNumber       string
	CustomerID        string
	Items             []OrderLineItem
	ShippingAddress   Address
	BillingAddress    BillingAddress
	Payment           Payment
	Pricing           OrderPricing
	Status            OrderStatus
	Timeline          []TimelineEntry
	Notes             OrderNotes
	Shipping          ShippingInfo
	InventoryRestored bool
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderLineItem snapshots one product and quantity bound to a vendor at order time.
type OrderLineItem struct {
	ID             string
	ProductID      string
	VendorID       string
	Title          string
	Price          int64
	Quantity       int
	Subtotal       int64
	Status         OrderStatus
	TrackingNumber string
}

// TimelineEntry is one append-only record of a status change.
type TimelineEntry struct {
	Status    OrderStatus
	Message   string
	Timestamp time.Time
	UpdatedBy string
}

// OrderPricing holds monetary totals in cents.
type OrderPricing struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Discount int64
	Total    int64
}

// Address is a postal address.
type Address struct {
	FullName string
	Street   string
	City     string
	State    string
	ZipCode  string
	Country  string
	Phone    string
}

// BillingAddress extends Address with a flag noting it was copied from shipping.
type BillingAddress struct {
	Address
	SameAsShipping bool
}

// Payment tracks the payment method and its status transitions.
type Payment struct {
	Method          PaymentMethod
	Status          PaymentStatus
	TransactionID   string
	PaymentIntentID string
	Amount          int64
	Currency        string
	PaidAt          *time.Time
	RefundedAt      *time.Time
	RefundAmount    int64
}

// OrderNotes keeps free-form notes by audience.
type OrderNotes struct {
	Customer string
	Admin    string
	Internal string
}

// ShippingInfo describes shipment progress for the whole order.
type ShippingInfo struct {
	Method            string
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
}

// ProductStatus enumerates catalog states for a product.
type ProductStatus string

const (
	ProductStatusDraft      ProductStatus = "draft"
	ProductStatusActive     ProductStatus = "active"
	ProductStatusInactive   ProductStatus = "inactive"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
)

// Product is the catalog view the order subsystem needs.
type Product struct {
	ID        string
	VendorID  string
	Title     string
	Price     int64
	Status    ProductStatus
	Inventory ProductInventory
	UpdatedAt time.Time
}

// ProductInventory carries stock counters for a product.
type ProductInventory struct {
	Quantity          int
	TrackQuantity     bool
	LowStockThreshold int
}

// IsActive reports whether the product can currently be purchased.
func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// CanFulfil reports whether quantity units can be taken from stock.
func (p Product) CanFulfil(quantity int) bool {
	if !p.Inventory.TrackQuantity {
		return true
	}
	return p.Inventory.Quantity >= quantity
}

// LowStock reports whether a tracked product is at or below its threshold.
func (p Product) LowStock() bool {
	return p.Inventory.TrackQuantity && p.Inventory.Quantity <= p.Inventory.LowStockThreshold
}

// Vendor is a seller profile owned by a user.
type Vendor struct {
	ID        string
	UserID    string
	StoreName string
	Status    string
	Stats     VendorStats
	UpdatedAt time.Time
}

// VendorStats holds monotonically increasing aggregate counters.
type VendorStats struct {
	TotalOrders  int64
	TotalRevenue int64
}
