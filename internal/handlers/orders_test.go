package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/auth"
	"github.com/shopmart/api/internal/platform/httpx"
	"github.com/shopmart/api/internal/services"
)

type stubOrderService struct {
	createFn       func(context.Context, services.CreateOrderCommand) (services.Order, error)
	listFn         func(context.Context, services.ListOrdersQuery) (domain.Page[services.Order], error)
	getFn          func(context.Context, string, services.Requester) (services.Order, error)
	cancelFn       func(context.Context, services.CancelOrderCommand) (services.Order, error)
	paymentFn      func(context.Context, services.UpdatePaymentCommand) (services.Order, error)
	trackFn        func(context.Context, string) (services.OrderTracking, error)
	itemStatusFn   func(context.Context, services.UpdateItemStatusCommand) (services.Order, error)
	vendorListFn   func(context.Context, services.VendorOrdersQuery) (domain.Page[services.Order], error)
	adminListFn    func(context.Context, services.AdminOrdersQuery) (domain.Page[services.Order], error)
	adminSetStatus func(context.Context, services.AdminSetStatusCommand) (services.Order, error)
}

var errNotStubbed = errors.New("not implemented")

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.Page[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, requester services.Requester) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, requester)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) UpdatePayment(ctx context.Context, cmd services.UpdatePaymentCommand) (services.Order, error) {
	if s.paymentFn != nil {
		return s.paymentFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) TrackOrder(ctx context.Context, orderNumber string) (services.OrderTracking, error) {
	if s.trackFn != nil {
		return s.trackFn(ctx, orderNumber)
	}
	return services.OrderTracking{}, errNotStubbed
}

func (s *stubOrderService) UpdateOrderItemStatus(ctx context.Context, cmd services.UpdateItemStatusCommand) (services.Order, error) {
	if s.itemStatusFn != nil {
		return s.itemStatusFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListVendorOrders(ctx context.Context, query services.VendorOrdersQuery) (domain.Page[services.Order], error) {
	if s.vendorListFn != nil {
		return s.vendorListFn(ctx, query)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) AdminListOrders(ctx context.Context, query services.AdminOrdersQuery) (domain.Page[services.Order], error) {
	if s.adminListFn != nil {
		return s.adminListFn(ctx, query)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) AdminSetOrderStatus(ctx context.Context, cmd services.AdminSetStatusCommand) (services.Order, error) {
	if s.adminSetStatus != nil {
		return s.adminSetStatus(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

var _ services.OrderService = (*stubOrderService)(nil)

func newOrderRouter(h *OrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", h.Routes)
	return router
}

func requestAs(method, target, body, uid string, roles ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if uid == "" {
		return req
	}
	identity := &auth.Identity{UID: uid, Roles: roles}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func sampleOrder(now time.Time) services.Order {
	return services.Order{
		ID:          "ord-1",
		OrderNumber: "ORD000042",
		CustomerID:  "cust-1",
		Items: []services.OrderLineItem{{
			ID: "item-1", ProductID: "prod-1", VendorID: "vend-1", Title: "Mug",
			Price: 1250, Quantity: 2, Subtotal: 2500, Status: domain.OrderStatusPending,
		}},
		Payment: domain.Payment{Method: domain.PaymentMethodStripe, Status: domain.PaymentStatusPending, Amount: 2975, Currency: "USD"},
		Pricing: domain.OrderPricing{Subtotal: 2500, Tax: 200, Shipping: 275, Total: 2975},
		Status:  domain.OrderStatusPending,
		Timeline: []services.TimelineEntry{{
			Status: domain.OrderStatusPending, Message: "Order placed", Timestamp: now, UpdatedBy: "cust-1",
		}},
		Notes:     domain.OrderNotes{Customer: "leave at door", Internal: "fragile"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	body := `{"items":[{"product":"prod-1","quantity":2}],
		"shippingAddress":{"fullName":"Ada","street":"1 Main","city":"Springfield","state":"IL","zipCode":"62701","country":"US"},
		"payment":{"method":" stripe "},"notes":{"customer":"leave at door"}}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPost, "/orders", body, "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cust-1" {
		t.Fatalf("expected customer from identity, got %q", captured.CustomerID)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != "prod-1" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", captured.Items)
	}
	if captured.PaymentMethod != domain.PaymentMethodStripe {
		t.Fatalf("expected trimmed payment method, got %q", captured.PaymentMethod)
	}
	if captured.ShippingAddress.ZipCode != "62701" || captured.BillingAddress != nil {
		t.Fatalf("unexpected addresses: %+v %+v", captured.ShippingAddress, captured.BillingAddress)
	}
	if captured.CustomerNote != "leave at door" {
		t.Fatalf("unexpected note %q", captured.CustomerNote)
	}

	var resp struct {
		Order struct {
			OrderNumber string `json:"orderNumber"`
			Notes       struct {
				Customer string `json:"customer"`
				Internal string `json:"internal"`
			} `json:"notes"`
			Pricing struct {
				Total int64 `json:"total"`
			} `json:"pricing"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.OrderNumber != "ORD000042" || resp.Order.Pricing.Total != 2975 {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
	if resp.Order.Notes.Internal != "" {
		t.Fatalf("internal notes must not reach customers")
	}
}

func TestOrderHandlersCreateOrderValidationDetails(t *testing.T) {
	service := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, &services.ValidationError{Fields: []services.FieldError{
				{Field: "items", Message: "Order must contain at least one item"},
				{Field: "payment.method", Message: "Invalid payment method"},
			}}
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPost, "/orders", `{"items":[]}`, "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp struct {
		Error   string              `json:"error"`
		Details []httpx.FieldDetail `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "validation_failed" || len(resp.Details) != 2 || resp.Details[1].Field != "payment.method" {
		t.Fatalf("unexpected validation payload: %+v", resp)
	}
}

func TestOrderHandlersCreateOrderRejectsBadBodies(t *testing.T) {
	router := newOrderRouter(NewOrderHandlers(nil, &stubOrderService{}))

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "empty", body: "", status: http.StatusBadRequest},
		{name: "malformed", body: `{"items":`, status: http.StatusBadRequest},
		{name: "too large", body: `{"notes":{"customer":"` + strings.Repeat("x", maxCreateOrderBodySize) + `"}}`, status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := requestAs(http.MethodPost, "/orders", tc.body, "cust-1", auth.RoleCustomer)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestOrderHandlersCreateOrderRequiresCustomerRole(t *testing.T) {
	called := false
	service := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPost, "/orders", `{}`, "vendor-user", auth.RoleVendor))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPost, "/orders", `{}`, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if called {
		t.Fatalf("service must not be called without the customer role")
	}
}

func TestOrderHandlersCreateOrderMiddleware(t *testing.T) {
	wrapped := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	}
	service := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			return sampleOrder(time.Now()), nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service, WithCreateOrderMiddleware(mw)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPost, "/orders", `{}`, "cust-1", auth.RoleCustomer))
	if !wrapped {
		t.Fatalf("expected create middleware to run")
	}

	wrapped = false
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/orders", "", "cust-1", auth.RoleCustomer))
	if wrapped {
		t.Fatalf("create middleware must not wrap list requests")
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var captured services.ListOrdersQuery
	service := &stubOrderService{
		listFn: func(_ context.Context, query services.ListOrdersQuery) (domain.Page[services.Order], error) {
			captured = query
			return domain.Page[services.Order]{Items: []services.Order{sampleOrder(now)}, Page: 2, Limit: 5, Total: 11}, nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/orders?page=2&limit=5&status=shipped", "", "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := services.ListOrdersQuery{CustomerID: "cust-1", Status: domain.OrderStatusShipped, Page: 2, Limit: 5}
	if captured != want {
		t.Fatalf("expected query %+v, got %+v", want, captured)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(resp.Orders))
	}
	meta := resp.Pagination
	if meta.CurrentPage != 2 || meta.TotalPages != 3 || meta.TotalOrders != 11 || !meta.HasNextPage || !meta.HasPrevPage {
		t.Fatalf("unexpected pagination: %+v", meta)
	}
}

func TestOrderHandlersListOrdersRejectsBadPaging(t *testing.T) {
	router := newOrderRouter(NewOrderHandlers(nil, &stubOrderService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/orders?limit=500", "", "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp struct {
		Error   string              `json:"error"`
		Details []httpx.FieldDetail `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "validation_failed" || len(resp.Details) != 1 || resp.Details[0].Field != "limit" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOrderHandlersGetOrderPassesRequester(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var captured services.Requester
	service := &stubOrderService{
		getFn: func(_ context.Context, orderID string, requester services.Requester) (services.Order, error) {
			if orderID != "ord-1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			captured = requester
			return sampleOrder(now), nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/orders/ord-1", "", "vendor-user", auth.RoleVendor))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured != (services.Requester{UserID: "vendor-user", Vendor: true}) {
		t.Fatalf("unexpected requester: %+v", captured)
	}
}

func TestOrderHandlersGetOrderForbidden(t *testing.T) {
	service := &stubOrderService{
		getFn: func(context.Context, string, services.Requester) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: not authorized to view this order", services.ErrOrderForbidden)
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/orders/ord-1", "", "someone", auth.RoleCustomer))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "order_forbidden" {
		t.Fatalf("expected order_forbidden, got %v", body["error"])
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder(now)
			order.AppendTimeline(domain.OrderStatusCancelled, "Order cancelled by customer", cmd.CustomerID, now)
			return order, nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPut, "/orders/ord-1/cancel", "", "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured != (services.CancelOrderCommand{OrderID: "ord-1", CustomerID: "cust-1"}) {
		t.Fatalf("unexpected command: %+v", captured)
	}
	order := decodeBody(t, rr)["order"].(map[string]any)
	if order["status"] != string(domain.OrderStatusCancelled) {
		t.Fatalf("expected cancelled status, got %v", order["status"])
	}
}

func TestOrderHandlersCancelOrderInvalidTransition(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(context.Context, services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: order cannot be cancelled at this stage (status shipped)", services.ErrOrderInvalidTransition)
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPut, "/orders/ord-1/cancel", "", "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %v", body["error"])
	}
}

func TestOrderHandlersUpdatePayment(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var captured services.UpdatePaymentCommand
	service := &stubOrderService{
		paymentFn: func(_ context.Context, cmd services.UpdatePaymentCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	body := `{"status":"completed","transactionId":"txn_1","paymentIntentId":"pi_1"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodPut, "/orders/ord-1/payment", body, "cust-1", auth.RoleCustomer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.CustomerID != "cust-1" || captured.Status != domain.PaymentStatusCompleted {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.TransactionID == nil || *captured.TransactionID != "txn_1" || captured.PaymentIntentID == nil || *captured.PaymentIntentID != "pi_1" {
		t.Fatalf("expected payment references to be forwarded")
	}
}

func TestOrderHandlersTrackOrderIsPublic(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		trackFn: func(_ context.Context, number string) (services.OrderTracking, error) {
			if number != "ORD000042" {
				return services.OrderTracking{}, services.ErrOrderNotFound
			}
			return services.OrderTracking{
				OrderNumber: number,
				Status:      domain.OrderStatusShipped,
				Timeline:    []services.TimelineEntry{{Status: domain.OrderStatusShipped, Timestamp: now}},
				Shipping:    services.ShippingInfo{TrackingNumber: "1Z999", ShippedAt: &now},
				Items: []services.TrackedItem{{
					Title: "Mug", VendorID: "vend-1", VendorName: "Clay Co", Status: domain.OrderStatusShipped, TrackingNumber: "1Z999",
				}},
			}, nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ORD000042/track", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp trackingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "shipped" || resp.Shipping.TrackingNumber != "1Z999" || resp.Shipping.ShippedAt == "" {
		t.Fatalf("unexpected tracking payload: %+v", resp)
	}
	if len(resp.Items) != 1 || resp.Items[0].Vendor != "Clay Co" || resp.Items[0].VendorID != "vend-1" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ORD999999/track", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersTrackOrderRateLimited(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		trackFn: func(_ context.Context, number string) (services.OrderTracking, error) {
			return services.OrderTracking{OrderNumber: number}, nil
		},
	}
	handler := NewOrderHandlers(nil, service, WithTrackRateLimit(2, time.Minute, func() time.Time { return now }))
	router := newOrderRouter(handler)

	codes := make([]int, 0, 3)
	var lastRetryAfter string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders/ORD000001/track", nil)
		req.RemoteAddr = "203.0.113.7:5123"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		lastRetryAfter = rr.Header().Get("Retry-After")
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if retry := lastRetryAfter; retry != "60" {
		t.Fatalf("expected Retry-After 60, got %q", retry)
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/ORD000001/track", nil)
	req.RemoteAddr = "198.51.100.1:80"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("other clients must not share the budget, got %d", rr.Code)
	}
}

func TestWriteOrderErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.NewValidationError("status", "Invalid status"), http.StatusBadRequest, "validation_failed"},
		{services.ErrOrderInvalidInput, http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("wrap: %w", services.ErrOrderNotFound), http.StatusNotFound, "order_not_found"},
		{services.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{services.ErrVendorNotFound, http.StatusNotFound, "vendor_not_found"},
		{services.ErrProductUnavailable, http.StatusBadRequest, "product_unavailable"},
		{services.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
		{services.ErrOrderForbidden, http.StatusForbidden, "order_forbidden"},
		{services.ErrOrderInvalidTransition, http.StatusBadRequest, "invalid_transition"},
		{services.ErrOrderConflict, http.StatusConflict, "order_conflict"},
		{services.ErrOrderUnavailable, http.StatusServiceUnavailable, "order_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeOrderError(context.Background(), rr, tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if body := decodeBody(t, rr); body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["error"])
			}
		})
	}
}
