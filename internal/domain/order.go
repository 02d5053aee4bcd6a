package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPricingMismatch reports a total that does not add up from its components.
	ErrPricingMismatch = errors.New("order: pricing components do not add up")
	// ErrSubtotalMismatch reports an order subtotal that differs from its items.
	ErrSubtotalMismatch = errors.New("order: subtotal differs from line items")
	// ErrStatusDrift reports a status that differs from the timeline head.
	ErrStatusDrift = errors.New("order: status differs from timeline head")
)

// AppendTimeline records a status change and moves the order to that status.
// Status is never assigned any other way.
func (o *Order) AppendTimeline(status OrderStatus, message, updatedBy string, at time.Time) {
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    status,
		Message:   message,
		Timestamp: at,
		UpdatedBy: updatedBy,
	})
	o.Status = status
	o.UpdatedAt = at
}

// LastTimelineEntry returns the most recent timeline entry.
func (o Order) LastTimelineEntry() (TimelineEntry, bool) {
	if len(o.Timeline) == 0 {
		return TimelineEntry{}, false
	}
	return o.Timeline[len(o.Timeline)-1], true
}

// HasVendor reports whether any line item belongs to the vendor.
func (o Order) HasVendor(vendorID string) bool {
	if vendorID == "" {
		return false
	}
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// ItemIndex returns the position of the line item with the given id, or -1.
func (o Order) ItemIndex(itemID string) int {
	for i, item := range o.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// VendorIDs lists distinct vendors in first-appearance order.
func (o Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		ids = append(ids, item.VendorID)
	}
	return ids
}

// VendorRevenue sums item subtotals per vendor.
func (o Order) VendorRevenue() map[string]int64 {
	revenue := make(map[string]int64, len(o.Items))
	for _, item := range o.Items {
		revenue[item.VendorID] += item.Subtotal
	}
	return revenue
}

// ItemsForVendor returns a copy of the order restricted to one vendor's items.
func (o Order) ItemsForVendor(vendorID string) Order {
	filtered := o
	filtered.Items = make([]OrderLineItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			filtered.Items = append(filtered.Items, item)
		}
	}
	return filtered
}

// StockReturns lists the inventory increments that undo the order's reservations.
func (o Order) StockReturns() []InventoryAdjustment {
	quantities := make(map[string]int, len(o.Items))
	order := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := quantities[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	adjustments := make([]InventoryAdjustment, 0, len(order))
	for _, productID := range order {
		adjustments = append(adjustments, InventoryAdjustment{ProductID: productID, Delta: quantities[productID]})
	}
	return adjustments
}

// CheckInvariants verifies derived fields against their inputs.
func (o Order) CheckInvariants() error {
	var subtotal int64
	for _, item := range o.Items {
		if item.Subtotal != item.Price*int64(item.Quantity) {
			return fmt.Errorf("%w: item %s", ErrSubtotalMismatch, item.ID)
		}
		subtotal += item.Subtotal
	}
	if subtotal != o.Pricing.Subtotal {
		return ErrSubtotalMismatch
	}
	p := o.Pricing
	if p.Total != p.Subtotal+p.Tax+p.Shipping-p.Discount {
		return ErrPricingMismatch
	}
	if head, ok := o.LastTimelineEntry(); !ok || head.Status != o.Status {
		return ErrStatusDrift
	}
	return nil
}

// InventoryAdjustment is a signed stock change for one product.
// Negative deltas reserve stock, positive deltas return it.
type InventoryAdjustment struct {
	ProductID string
	Delta     int
}
