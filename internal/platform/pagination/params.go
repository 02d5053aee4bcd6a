package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/shopmart/api/internal/domain"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 20
	// MaxLimit caps the supported limit to prevent unbounded queries.
	MaxLimit = 100
)

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
)

// FieldError names the query parameter that failed to parse and carries a client-facing message.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string { return e.Message }

func (e *FieldError) Unwrap() error { return e.Err }

// Params are the offset paging values of a list request. Zero means "use the default".
type Params struct {
	Page  int
	Limit int
}

// Offset returns the number of items to skip.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.limitOrDefault()
}

func (p Params) limitOrDefault() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// FromRequest parses page and limit from the request query string.
func FromRequest(r *http.Request) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query())
}

// Parse reads page and limit. Absent values stay zero; present values must be in range.
func Parse(values url.Values) (Params, error) {
	var params Params

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Params{}, &FieldError{Field: "page", Message: "Page must be a positive integer", Err: ErrInvalidPage}
		}
		params.Page = page
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return Params{}, &FieldError{Field: "limit", Message: "Limit must be between 1 and 100", Err: ErrInvalidLimit}
		}
		params.Limit = limit
	}

	return params, nil
}

// Meta is the pagination block of a list response.
type Meta struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// MetaFor summarises a result page.
func MetaFor[T any](page domain.Page[T]) Meta {
	return Meta{
		CurrentPage: page.Page,
		TotalPages:  page.TotalPages(),
		TotalOrders: page.Total,
		HasNextPage: page.HasNext(),
		HasPrevPage: page.HasPrev(),
	}
}
