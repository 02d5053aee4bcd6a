package pagination

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	domain "github.com/shopmart/api/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Params
		wantErr error
		field   string
	}{
		{name: "empty", query: "", want: Params{}},
		{name: "explicit", query: "page=3&limit=50", want: Params{Page: 3, Limit: 50}},
		{name: "max limit", query: "limit=100", want: Params{Limit: 100}},
		{name: "zero page", query: "page=0", wantErr: ErrInvalidPage, field: "page"},
		{name: "text page", query: "page=abc", wantErr: ErrInvalidPage, field: "page"},
		{name: "limit too big", query: "limit=101", wantErr: ErrInvalidLimit, field: "limit"},
		{name: "negative limit", query: "limit=-1", wantErr: ErrInvalidLimit, field: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			got, err := Parse(values)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var fieldErr *FieldError
				if !errors.As(err, &fieldErr) || fieldErr.Field != tt.field {
					t.Fatalf("expected field %s, got %v", tt.field, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := (Params{Page: 3}).Offset(); got != 40 {
		t.Fatalf("expected default limit offset 40, got %d", got)
	}
	if got := (Params{Page: 2, Limit: 5}).Offset(); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestMetaFor(t *testing.T) {
	meta := MetaFor(domain.Page[int]{Items: []int{1, 2}, Page: 2, Limit: 2, Total: 5})
	want := Meta{CurrentPage: 2, TotalPages: 3, TotalOrders: 5, HasNextPage: true, HasPrevPage: true}
	if meta != want {
		t.Fatalf("expected %+v, got %+v", want, meta)
	}

	empty := MetaFor(domain.Page[int]{Page: 1, Limit: 20})
	if empty.TotalPages != 0 || empty.HasNextPage || empty.HasPrevPage {
		t.Fatalf("unexpected empty meta %+v", empty)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Params
	handler := Middleware(func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, err.Error(), http.StatusBadRequest)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?page=2&limit=10", nil))
	if rec.Code != http.StatusNoContent || seen != (Params{Page: 2, Limit: 10}) {
		t.Fatalf("unexpected result %d %+v", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
