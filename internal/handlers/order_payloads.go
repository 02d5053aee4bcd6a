package handlers

import (
	"time"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/pagination"
	"github.com/shopmart/api/internal/services"
)

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders     []orderPayload  `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	Customer        string                 `json:"customer"`
	Items           []orderItemPayload     `json:"items"`
	ShippingAddress addressPayload         `json:"shippingAddress"`
	BillingAddress  billingAddressPayload  `json:"billingAddress"`
	Payment         paymentPayload         `json:"payment"`
	Pricing         pricingPayload         `json:"pricing"`
	Status          string                 `json:"status"`
	Timeline        []timelineEntryPayload `json:"timeline"`
	Notes           notesPayload           `json:"notes"`
	Shipping        shippingPayload        `json:"shipping"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	ID             string `json:"id"`
	Product        string `json:"product"`
	Vendor         string `json:"vendor"`
	Title          string `json:"title"`
	Price          int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	Subtotal       int64  `json:"subtotal"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

type addressPayload struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

type billingAddressPayload struct {
	addressPayload
	SameAsShipping bool `json:"sameAsShipping"`
}

type paymentPayload struct {
	Method          string `json:"method"`
	Status          string `json:"status"`
	TransactionID   string `json:"transactionId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paidAt,omitempty"`
	RefundedAt      string `json:"refundedAt,omitempty"`
	RefundAmount    int64  `json:"refundAmount,omitempty"`
}

type pricingPayload struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type timelineEntryPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

type notesPayload struct {
	Customer string `json:"customer,omitempty"`
	Admin    string `json:"admin,omitempty"`
	Internal string `json:"internal,omitempty"`
}

type shippingPayload struct {
	Method            string `json:"method,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	ShippedAt         string `json:"shippedAt,omitempty"`
	DeliveredAt       string `json:"deliveredAt,omitempty"`
}

type trackingResponse struct {
	OrderNumber string                 `json:"orderNumber"`
	Status      string                 `json:"status"`
	Timeline    []timelineEntryPayload `json:"timeline"`
	Shipping    shippingPayload        `json:"shipping"`
	Items       []trackedItemPayload   `json:"items"`
}

type trackedItemPayload struct {
	Title          string `json:"title"`
	VendorID       string `json:"vendorId"`
	Vendor         string `json:"vendor,omitempty"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

type productInventoryResponse struct {
	Product productInventoryPayload `json:"product"`
}

type productInventoryPayload struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	Quantity          int    `json:"quantity"`
	TrackQuantity     bool   `json:"trackQuantity"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	LowStock          bool   `json:"lowStock"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// buildOrderPayload renders an order. Admin and internal notes are only included for staff views.
func buildOrderPayload(order services.Order, staff bool) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ID:             item.ID,
			Product:        item.ProductID,
			Vendor:         item.VendorID,
			Title:          item.Title,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Subtotal:       item.Subtotal,
			Status:         string(item.Status),
			TrackingNumber: item.TrackingNumber,
		})
	}

	notes := notesPayload{Customer: order.Notes.Customer}
	if staff {
		notes.Admin = order.Notes.Admin
		notes.Internal = order.Notes.Internal
	}

	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Customer:        order.CustomerID,
		Items:           items,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress: billingAddressPayload{
			addressPayload: buildAddressPayload(order.BillingAddress.Address),
			SameAsShipping: order.BillingAddress.SameAsShipping,
		},
		Payment: paymentPayload{
			Method:          string(order.Payment.Method),
			Status:          string(order.Payment.Status),
			TransactionID:   order.Payment.TransactionID,
			PaymentIntentID: order.Payment.PaymentIntentID,
			Amount:          order.Payment.Amount,
			Currency:        order.Payment.Currency,
			PaidAt:          formatTimePointer(order.Payment.PaidAt),
			RefundedAt:      formatTimePointer(order.Payment.RefundedAt),
			RefundAmount:    order.Payment.RefundAmount,
		},
		Pricing: pricingPayload{
			Subtotal: order.Pricing.Subtotal,
			Tax:      order.Pricing.Tax,
			Shipping: order.Pricing.Shipping,
			Discount: order.Pricing.Discount,
			Total:    order.Pricing.Total,
		},
		Status:    string(order.Status),
		Timeline:  buildTimelinePayload(order.Timeline),
		Notes:     notes,
		Shipping:  buildShippingPayload(order.Shipping),
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
}

func buildOrderList(page domain.Page[services.Order], staff bool) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order, staff))
	}
	return orderListResponse{
		Orders:     orders,
		Pagination: pagination.MetaFor(page),
	}
}

func buildTrackingResponse(tracking services.OrderTracking) trackingResponse {
	items := make([]trackedItemPayload, 0, len(tracking.Items))
	for _, item := range tracking.Items {
		items = append(items, trackedItemPayload{
			Title:          item.Title,
			VendorID:       item.VendorID,
			Vendor:         item.VendorName,
			Status:         string(item.Status),
			TrackingNumber: item.TrackingNumber,
		})
	}
	return trackingResponse{
		OrderNumber: tracking.OrderNumber,
		Status:      string(tracking.Status),
		Timeline:    buildTimelinePayload(tracking.Timeline),
		Shipping:    buildShippingPayload(tracking.Shipping),
		Items:       items,
	}
}

func buildProductInventoryPayload(product services.Product) productInventoryPayload {
	return productInventoryPayload{
		ID:                product.ID,
		Title:             product.Title,
		Status:            string(product.Status),
		Quantity:          product.Inventory.Quantity,
		TrackQuantity:     product.Inventory.TrackQuantity,
		LowStockThreshold: product.Inventory.LowStockThreshold,
		LowStock:          product.LowStock(),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		FullName: addr.FullName,
		Street:   addr.Street,
		City:     addr.City,
		State:    addr.State,
		ZipCode:  addr.ZipCode,
		Country:  addr.Country,
		Phone:    addr.Phone,
	}
}

func buildTimelinePayload(entries []domain.TimelineEntry) []timelineEntryPayload {
	out := make([]timelineEntryPayload, 0, len(entries))
	for _, entry := range entries {
		out = append(out, timelineEntryPayload{
			Status:    string(entry.Status),
			Message:   entry.Message,
			Timestamp: formatTime(entry.Timestamp),
			UpdatedBy: entry.UpdatedBy,
		})
	}
	return out
}

func buildShippingPayload(info domain.ShippingInfo) shippingPayload {
	return shippingPayload{
		Method:            info.Method,
		Carrier:           info.Carrier,
		TrackingNumber:    info.TrackingNumber,
		EstimatedDelivery: formatTimePointer(info.EstimatedDelivery),
		ShippedAt:         formatTimePointer(info.ShippedAt),
		DeliveredAt:       formatTimePointer(info.DeliveredAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePointer(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
