package firestore

import (
	"time"

	domain "github.com/shopmart/api/internal/domain"
)

const (
	ordersCollection       = "orders"
	productsCollection     = "products"
	vendorsCollection      = "vendors"
	countersCollection     = "counters"
	orderNumbersCollection = "orderNumbers"
	statsAppliedCollection = "vendorStatsApplied"
)

type orderDocument struct {
	ID                string             `firestore:"id"`
	OrderNumber       string             `firestore:"orderNumber"`
	CustomerID        string             `firestore:"customerId"`
	Items             []lineItemDocument `firestore:"items"`
	VendorIDs         []string           `firestore:"vendorIds"`
	ItemStatuses      []string           `firestore:"itemStatuses"`
	ShippingAddress   addressDocument    `firestore:"shippingAddress"`
	BillingAddress    addressDocument    `firestore:"billingAddress"`
	SameAsShipping    bool               `firestore:"billingSameAsShipping"`
	Payment           paymentDocument    `firestore:"payment"`
	Pricing           pricingDocument    `firestore:"pricing"`
	Status            string             `firestore:"status"`
	Timeline          []timelineDocument `firestore:"timeline"`
	Notes             notesDocument      `firestore:"notes"`
	Shipping          shippingDocument   `firestore:"shipping"`
	InventoryRestored bool               `firestore:"inventoryRestored"`
	Version           int64              `firestore:"version"`
	CreatedAt         time.Time          `firestore:"createdAt"`
	UpdatedAt         time.Time          `firestore:"updatedAt"`
}

type lineItemDocument struct {
	ID             string `firestore:"id"`
	ProductID      string `firestore:"productId"`
	VendorID       string `firestore:"vendorId"`
	Title          string `firestore:"title"`
	Price          int64  `firestore:"price"`
	Quantity       int    `firestore:"quantity"`
	Subtotal       int64  `firestore:"subtotal"`
	Status         string `firestore:"status"`
	TrackingNumber string `firestore:"trackingNumber,omitempty"`
}

type addressDocument struct {
	FullName string `firestore:"fullName"`
	Street   string `firestore:"street"`
	City     string `firestore:"city"`
	State    string `firestore:"state"`
	ZipCode  string `firestore:"zipCode"`
	Country  string `firestore:"country"`
	Phone    string `firestore:"phone,omitempty"`
}

type paymentDocument struct {
	Method          string     `firestore:"method"`
	Status          string     `firestore:"status"`
	TransactionID   string     `firestore:"transactionId,omitempty"`
	PaymentIntentID string     `firestore:"paymentIntentId,omitempty"`
	Amount          int64      `firestore:"amount"`
	Currency        string     `firestore:"currency"`
	PaidAt          *time.Time `firestore:"paidAt,omitempty"`
	RefundedAt      *time.Time `firestore:"refundedAt,omitempty"`
	RefundAmount    int64      `firestore:"refundAmount,omitempty"`
}

type pricingDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Tax      int64 `firestore:"tax"`
	Shipping int64 `firestore:"shipping"`
	Discount int64 `firestore:"discount"`
	Total    int64 `firestore:"total"`
}

type timelineDocument struct {
	Status    string    `firestore:"status"`
	Message   string    `firestore:"message"`
	Timestamp time.Time `firestore:"timestamp"`
	UpdatedBy string    `firestore:"updatedBy"`
}

type notesDocument struct {
	Customer string `firestore:"customer,omitempty"`
	Admin    string `firestore:"admin,omitempty"`
	Internal string `firestore:"internal,omitempty"`
}

type shippingDocument struct {
	Method            string     `firestore:"method,omitempty"`
	Carrier           string     `firestore:"carrier,omitempty"`
	TrackingNumber    string     `firestore:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `firestore:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `firestore:"deliveredAt,omitempty"`
}

type productDocument struct {
	VendorID          string    `firestore:"vendorId"`
	Title             string    `firestore:"title"`
	Price             int64     `firestore:"price"`
	Status            string    `firestore:"status"`
	Quantity          int       `firestore:"quantity"`
	TrackQuantity     bool      `firestore:"trackQuantity"`
	LowStockThreshold int       `firestore:"lowStockThreshold"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type vendorDocument struct {
	UserID       string    `firestore:"userId"`
	StoreName    string    `firestore:"storeName"`
	Status       string    `firestore:"status"`
	TotalOrders  int64     `firestore:"totalOrders"`
	TotalRevenue int64     `firestore:"totalRevenue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

type orderNumberDocument struct {
	OrderID string `firestore:"orderId"`
}

type statsAppliedDocument struct {
	VendorID  string    `firestore:"vendorId"`
	Orders    int64     `firestore:"orders"`
	Revenue   int64     `firestore:"revenue"`
	AppliedAt time.Time `firestore:"appliedAt"`
}

func newOrderDocument(o domain.Order) orderDocument {
	doc := orderDocument{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Items:           make([]lineItemDocument, 0, len(o.Items)),
		VendorIDs:       o.VendorIDs(),
		ShippingAddress: newAddressDocument(o.ShippingAddress),
		BillingAddress:  newAddressDocument(o.BillingAddress.Address),
		SameAsShipping:  o.BillingAddress.SameAsShipping,
		Payment: paymentDocument{
			Method:          string(o.Payment.Method),
			Status:          string(o.Payment.Status),
			TransactionID:   o.Payment.TransactionID,
			PaymentIntentID: o.Payment.PaymentIntentID,
			Amount:          o.Payment.Amount,
			Currency:        o.Payment.Currency,
			PaidAt:          o.Payment.PaidAt,
			RefundedAt:      o.Payment.RefundedAt,
			RefundAmount:    o.Payment.RefundAmount,
		},
		Pricing:           pricingDocument(o.Pricing),
		Status:            string(o.Status),
		Timeline:          make([]timelineDocument, 0, len(o.Timeline)),
		Notes:             notesDocument(o.Notes),
		Shipping:          shippingDocument(o.Shipping),
		InventoryRestored: o.InventoryRestored,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt.UTC(),
		UpdatedAt:         o.UpdatedAt.UTC(),
	}
	seen := make(map[string]struct{})
	for _, item := range o.Items {
		doc.Items = append(doc.Items, lineItemDocument{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VendorID:       item.VendorID,
			Title:          item.Title,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Subtotal:       item.Subtotal,
			Status:         string(item.Status),
			TrackingNumber: item.TrackingNumber,
		})
		if _, ok := seen[string(item.Status)]; !ok {
			seen[string(item.Status)] = struct{}{}
			doc.ItemStatuses = append(doc.ItemStatuses, string(item.Status))
		}
	}
	for _, entry := range o.Timeline {
		doc.Timeline = append(doc.Timeline, timelineDocument{
			Status:    string(entry.Status),
			Message:   entry.Message,
			Timestamp: entry.Timestamp.UTC(),
			UpdatedBy: entry.UpdatedBy,
		})
	}
	return doc
}

func (d orderDocument) toDomain() domain.Order {
	o := domain.Order{
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		CustomerID:      d.CustomerID,
		Items:           make([]domain.OrderLineItem, 0, len(d.Items)),
		ShippingAddress: d.ShippingAddress.toDomain(),
		BillingAddress: domain.BillingAddress{
			Address:        d.BillingAddress.toDomain(),
			SameAsShipping: d.SameAsShipping,
		},
		Payment: domain.Payment{
			Method:          domain.PaymentMethod(d.Payment.Method),
			Status:          domain.PaymentStatus(d.Payment.Status),
			TransactionID:   d.Payment.TransactionID,
			PaymentIntentID: d.Payment.PaymentIntentID,
			Amount:          d.Payment.Amount,
			Currency:        d.Payment.Currency,
			PaidAt:          d.Payment.PaidAt,
			RefundedAt:      d.Payment.RefundedAt,
			RefundAmount:    d.Payment.RefundAmount,
		},
		Pricing:           domain.OrderPricing(d.Pricing),
		Status:            domain.OrderStatus(d.Status),
		Timeline:          make([]domain.TimelineEntry, 0, len(d.Timeline)),
		Notes:             domain.OrderNotes(d.Notes),
		Shipping:          domain.ShippingInfo(d.Shipping),
		InventoryRestored: d.InventoryRestored,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, item := range d.Items {
		o.Items = append(o.Items, domain.OrderLineItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VendorID:       item.VendorID,
			Title:          item.Title,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Subtotal:       item.Subtotal,
			Status:         domain.OrderStatus(item.Status),
			TrackingNumber: item.TrackingNumber,
		})
	}
	for _, entry := range d.Timeline {
		o.Timeline = append(o.Timeline, domain.TimelineEntry{
			Status:    domain.OrderStatus(entry.Status),
			Message:   entry.Message,
			Timestamp: entry.Timestamp,
			UpdatedBy: entry.UpdatedBy,
		})
	}
	return o
}

func newAddressDocument(a domain.Address) addressDocument {
	return addressDocument(a)
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address(d)
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		VendorID:          p.VendorID,
		Title:             p.Title,
		Price:             p.Price,
		Status:            string(p.Status),
		Quantity:          p.Inventory.Quantity,
		TrackQuantity:     p.Inventory.TrackQuantity,
		LowStockThreshold: p.Inventory.LowStockThreshold,
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:       id,
		VendorID: d.VendorID,
		Title:    d.Title,
		Price:    d.Price,
		Status:   domain.ProductStatus(d.Status),
		Inventory: domain.ProductInventory{
			Quantity:          d.Quantity,
			TrackQuantity:     d.TrackQuantity,
			LowStockThreshold: d.LowStockThreshold,
		},
		UpdatedAt: d.UpdatedAt,
	}
}

func newVendorDocument(v domain.Vendor) vendorDocument {
	return vendorDocument{
		UserID:       v.UserID,
		StoreName:    v.StoreName,
		Status:       v.Status,
		TotalOrders:  v.Stats.TotalOrders,
		TotalRevenue: v.Stats.TotalRevenue,
		UpdatedAt:    v.UpdatedAt.UTC(),
	}
}

func (d vendorDocument) toDomain(id string) domain.Vendor {
	return domain.Vendor{
		ID:        id,
		UserID:    d.UserID,
		StoreName: d.StoreName,
		Status:    d.Status,
		Stats: domain.VendorStats{
			TotalOrders:  d.TotalOrders,
			TotalRevenue: d.TotalRevenue,
		},
		UpdatedAt: d.UpdatedAt,
	}
}
