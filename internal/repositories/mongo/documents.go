package mongo

import (
	"time"

	domain "github.com/shopmart/api/internal/domain"
)

const (
	ordersCollection       = "orders"
	productsCollection     = "products"
	vendorsCollection      = "vendors"
	countersCollection     = "counters"
	statsAppliedCollection = "vendor_stats_applied"
)

type orderDocument struct {
	ID                string             `bson:"_id"`
	OrderNumber       string             `bson:"orderNumber"`
	CustomerID        string             `bson:"customerId"`
	Items             []lineItemDocument `bson:"items"`
	VendorIDs         []string           `bson:"vendorIds"`
	ShippingAddress   addressDocument    `bson:"shippingAddress"`
	BillingAddress    addressDocument    `bson:"billingAddress"`
	SameAsShipping    bool               `bson:"billingSameAsShipping"`
	Payment           paymentDocument    `bson:"payment"`
	Pricing           pricingDocument    `bson:"pricing"`
	Status            string             `bson:"status"`
	Timeline          []timelineDocument `bson:"timeline"`
	Notes             notesDocument      `bson:"notes"`
	Shipping          shippingDocument   `bson:"shipping"`
	InventoryRestored bool               `bson:"inventoryRestored"`
	Version           int64              `bson:"version"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

type lineItemDocument struct {
	ID             string `bson:"id"`
	ProductID      string `bson:"productId"`
	VendorID       string `bson:"vendorId"`
	Title          string `bson:"title"`
	Price          int64  `bson:"price"`
	Quantity       int    `bson:"quantity"`
	Subtotal       int64  `bson:"subtotal"`
	Status         string `bson:"status"`
	TrackingNumber string `bson:"trackingNumber,omitempty"`
}

type addressDocument struct {
	FullName string `bson:"fullName"`
	Street   string `bson:"street"`
	City     string `bson:"city"`
	State    string `bson:"state"`
	ZipCode  string `bson:"zipCode"`
	Country  string `bson:"country"`
	Phone    string `bson:"phone,omitempty"`
}

type paymentDocument struct {
	Method          string     `bson:"method"`
	Status          string     `bson:"status"`
	TransactionID   string     `bson:"transactionId,omitempty"`
	PaymentIntentID string     `bson:"paymentIntentId,omitempty"`
	Amount          int64      `bson:"amount"`
	Currency        string     `bson:"currency"`
	PaidAt          *time.Time `bson:"paidAt,omitempty"`
	RefundedAt      *time.Time `bson:"refundedAt,omitempty"`
	RefundAmount    int64      `bson:"refundAmount,omitempty"`
}

type pricingDocument struct {
	Subtotal int64 `bson:"subtotal"`
	Tax      int64 `bson:"tax"`
	Shipping int64 `bson:"shipping"`
	Discount int64 `bson:"discount"`
	Total    int64 `bson:"total"`
}

type timelineDocument struct {
	Status    string    `bson:"status"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
	UpdatedBy string    `bson:"updatedBy"`
}

type notesDocument struct {
	Customer string `bson:"customer,omitempty"`
	Admin    string `bson:"admin,omitempty"`
	Internal string `bson:"internal,omitempty"`
}

type shippingDocument struct {
	Method            string     `bson:"method,omitempty"`
	Carrier           string     `bson:"carrier,omitempty"`
	TrackingNumber    string     `bson:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time `bson:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `bson:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `bson:"deliveredAt,omitempty"`
}

type productDocument struct {
	ID                string    `bson:"_id"`
	VendorID          string    `bson:"vendorId"`
	Title             string    `bson:"title"`
	Price             int64     `bson:"price"`
	Status            string    `bson:"status"`
	Quantity          int       `bson:"quantity"`
	TrackQuantity     bool      `bson:"trackQuantity"`
	LowStockThreshold int       `bson:"lowStockThreshold"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

type vendorDocument struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"userId"`
	StoreName    string    `bson:"storeName"`
	Status       string    `bson:"status"`
	TotalOrders  int64     `bson:"totalOrders"`
	TotalRevenue int64     `bson:"totalRevenue"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type counterDocument struct {
	ID           string `bson:"_id"`
	CurrentValue int64  `bson:"currentValue"`
}

type statsAppliedDocument struct {
	Key       string    `bson:"_id"`
	VendorID  string    `bson:"vendorId"`
	Orders    int64     `bson:"orders"`
	Revenue   int64     `bson:"revenue"`
	AppliedAt time.Time `bson:"appliedAt"`
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
		ID:                p.ID,
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

func (d productDocument) toDomain() domain.Product {
	return domain.Product{
		ID:       d.ID,
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
		ID:           v.ID,
		UserID:       v.UserID,
		StoreName:    v.StoreName,
		Status:       v.Status,
		TotalOrders:  v.Stats.TotalOrders,
		TotalRevenue: v.Stats.TotalRevenue,
		UpdatedAt:    v.UpdatedAt.UTC(),
	}
}

func (d vendorDocument) toDomain() domain.Vendor {
	return domain.Vendor{
		ID:        d.ID,
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
