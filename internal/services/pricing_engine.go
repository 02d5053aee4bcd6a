package services

import (
	"errors"
	"fmt"
	"math"

	domain "github.com/shopmart/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals negative prices, empty quantities or overflowing totals.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// PricingInput lists the lines to price plus an optional discount.
type PricingInput struct {
	Lines    []domain.PricingLine
	Discount int64
}

// OrderPricingEngine computes order totals from line items. It holds no state beyond its policy.
type OrderPricingEngine struct {
	policy domain.PricingPolicy
}

// NewOrderPricingEngine constructs an engine for the given policy.
func NewOrderPricingEngine(policy domain.PricingPolicy) (*OrderPricingEngine, error) {
	if policy.TaxRatePercent < 0 || policy.FreeShippingAbove < 0 || policy.FlatShipping < 0 {
		return nil, errors.New("order pricing engine: policy values must be non-negative")
	}
	return &OrderPricingEngine{policy: policy}, nil
}

// LineSubtotal multiplies a unit price by a quantity, guarding overflow.
func LineSubtotal(price int64, quantity int) (int64, error) {
	if price < 0 {
		return 0, fmt.Errorf("%w: negative price", ErrPricingInvalidInput)
	}
	if quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", ErrPricingInvalidInput)
	}
	q := int64(quantity)
	if price > 0 && price > math.MaxInt64/q {
		return 0, fmt.Errorf("%w: line subtotal overflow", ErrPricingInvalidInput)
	}
	return price * q, nil
}

// Compute prices the lines. The result always satisfies
// Total == Subtotal + Tax + Shipping - Discount.
func (e *OrderPricingEngine) Compute(input PricingInput) (domain.OrderPricing, error) {
	if len(input.Lines) == 0 {
		return domain.OrderPricing{}, fmt.Errorf("%w: no lines", ErrPricingInvalidInput)
	}

	var subtotal int64
	for i, line := range input.Lines {
		lineSubtotal, err := LineSubtotal(line.Price, line.Quantity)
		if err != nil {
			return domain.OrderPricing{}, fmt.Errorf("line %d: %w", i, err)
		}
		if subtotal > math.MaxInt64-lineSubtotal {
			return domain.OrderPricing{}, fmt.Errorf("%w: subtotal overflow", ErrPricingInvalidInput)
		}
		subtotal += lineSubtotal
	}

	tax, err := e.tax(subtotal)
	if err != nil {
		return domain.OrderPricing{}, err
	}
	shipping := e.shipping(subtotal)

	gross := subtotal + tax
	if gross < subtotal || gross > math.MaxInt64-shipping {
		return domain.OrderPricing{}, fmt.Errorf("%w: total overflow", ErrPricingInvalidInput)
	}
	gross += shipping

	discount := input.Discount
	if discount < 0 {
		discount = 0
	}
	if discount > gross {
		discount = gross
	}

	return domain.OrderPricing{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    gross - discount,
	}, nil
}

func (e *OrderPricingEngine) tax(subtotal int64) (int64, error) {
	rate := e.policy.TaxRatePercent
	if rate == 0 || subtotal == 0 {
		return 0, nil
	}
	if subtotal > (math.MaxInt64-50)/rate {
		return 0, fmt.Errorf("%w: tax overflow", ErrPricingInvalidInput)
	}
	// half-up to the cent
	return (subtotal*rate + 50) / 100, nil
}

func (e *OrderPricingEngine) shipping(subtotal int64) int64 {
	if subtotal > e.policy.FreeShippingAbove {
		return 0
	}
	return e.policy.FlatShipping
}
