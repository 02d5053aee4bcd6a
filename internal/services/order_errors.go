package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopmart/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals malformed or missing input. Field details travel in *ValidationError.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrProductNotFound indicates an ordered product does not exist.
	ErrProductNotFound = errors.New("order: product not found")
	// ErrVendorNotFound indicates the caller has no vendor profile.
	ErrVendorNotFound = errors.New("order: vendor profile not found")
	// ErrProductUnavailable indicates an ordered product is not currently purchasable.
	ErrProductUnavailable = errors.New("order: product unavailable")
	// ErrInsufficientStock indicates the requested quantity exceeds tracked inventory.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderForbidden indicates the requester lacks ownership or role.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidTransition indicates the state machine rejected the status change.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates an order-number race or a concurrent modification that outlived retries.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the store could not be reached.
	ErrOrderUnavailable = errors.New("order: store unavailable")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrOrderInvalidInput.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrOrderInvalidInput, strings.Join(parts, "; "))
}

// Unwrap makes errors.Is(err, ErrOrderInvalidInput) hold.
func (e *ValidationError) Unwrap() error { return ErrOrderInvalidInput }

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// mapRepositoryError translates storage failures into service sentinels.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if invErr, ok := repositories.AsInventoryError(err); ok {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: product %s has %d available, %d requested", ErrInsufficientStock, invErr.ProductID, invErr.Available, invErr.Requested)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, invErr.ProductID)
		case repositories.InventoryErrorProductUnavailable:
			return fmt.Errorf("%w: %s", ErrProductUnavailable, invErr.ProductID)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			if notFound == nil {
				notFound = ErrOrderNotFound
			}
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func isConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
