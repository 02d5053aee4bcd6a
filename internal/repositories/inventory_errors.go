package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode enumerates repository error causes for stock operations.
type InventoryErrorCode string

const (
	// InventoryErrorInsufficientStock indicates requested quantity exceeds tracked stock.
	InventoryErrorInsufficientStock InventoryErrorCode = "insufficient_stock"
	// InventoryErrorProductNotFound indicates the product disappeared before reservation.
	InventoryErrorProductNotFound InventoryErrorCode = "product_not_found"
	// InventoryErrorProductUnavailable indicates the product is no longer active.
	InventoryErrorProductUnavailable InventoryErrorCode = "product_unavailable"
)

// InventoryError reports a stock failure detected inside a store transaction.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID string
	Requested int
	Available int
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s for product %s", e.Code, e.ProductID)
	if e.Code == InventoryErrorInsufficientStock {
		msg = fmt.Sprintf("%s (requested %d, available %d)", msg, e.Requested, e.Available)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *InventoryError) IsNotFound() bool    { return e != nil && e.Code == InventoryErrorProductNotFound }
func (e *InventoryError) IsConflict() bool    { return false }
func (e *InventoryError) IsUnavailable() bool { return false }

// NewInsufficientStockError builds the error returned by a failed check-and-decrement.
func NewInsufficientStockError(op, productID string, requested, available int) *InventoryError {
	return &InventoryError{
		Op:        op,
		Code:      InventoryErrorInsufficientStock,
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

// NewInventoryError constructs a typed inventory error without quantities.
func NewInventoryError(op string, code InventoryErrorCode, productID string) *InventoryError {
	return &InventoryError{Op: op, Code: code, ProductID: productID}
}

// AsInventoryError extracts an *InventoryError from the chain.
func AsInventoryError(err error) (*InventoryError, bool) {
	var invErr *InventoryError
	if errors.As(err, &invErr) && invErr != nil {
		return invErr, true
	}
	return nil, false
}
