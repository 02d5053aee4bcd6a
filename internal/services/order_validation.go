package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/shopmart/api/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	messageQuantityTooLarge = "Quantity is too large"
)

// fieldMessages maps a struct field and failing tag to the client-facing message.
var fieldMessages = map[string]string{
	"CustomerID.required":          "Customer is required",
	"Items.required":               "Order must contain at least one item",
	"Items.min":                    "Order must contain at least one item",
	"ProductID.required":           "Product ID is required",
	"Quantity.min":                 "Quantity must be at least 1",
	"FullName.required":            "Full name is required",
	"Street.required":              "Street address is required",
	"City.required":                "City is required",
	"State.required":               "State is required",
	"ZipCode.required":             "Zip code is required",
	"Country.required":             "Country is required",
	"PaymentMethod.payment_method": "Invalid payment method",
	"CustomerNote.max":             "Customer note cannot exceed 1000 characters",
}

func newOrderValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return domain.PaymentMethod(fl.Field().String()).Valid()
	})
	return v
}

// translateValidation converts validator output into a *ValidationError.
func translateValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		message, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			message = "Invalid value"
		}
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe.Namespace()), Message: message})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.IndexByte(namespace, '.'); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func normalizePaging(page, limit int) (int, int, error) {
	var fields []FieldError
	switch {
	case page == 0:
		page = 1
	case page < 0:
		fields = append(fields, FieldError{Field: "page", Message: "Page must be a positive integer"})
	}
	switch {
	case limit == 0:
		limit = defaultPageLimit
	case limit < 0 || limit > maxPageLimit:
		fields = append(fields, FieldError{Field: "limit", Message: "Limit must be between 1 and 100"})
	}
	if len(fields) > 0 {
		return 0, 0, &ValidationError{Fields: fields}
	}
	return page, limit, nil
}

func validateStatusFilter(field string, status OrderStatus) error {
	if status == "" || status.Valid() {
		return nil
	}
	return NewValidationError(field, "Invalid status")
}
