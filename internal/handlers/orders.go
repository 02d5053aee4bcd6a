package handlers

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/auth"
	"github.com/shopmart/api/internal/platform/httpx"
	"github.com/shopmart/api/internal/platform/pagination"
	"github.com/shopmart/api/internal/platform/requestctx"
	"github.com/shopmart/api/internal/services"
)

const (
	maxCreateOrderBodySize  = 64 * 1024
	maxOrderUpdateBodySize  = 4 * 1024
	defaultTrackRateLimit   = 60
	defaultTrackRateWindow  = time.Minute
	orderServiceUnavailable = "order service unavailable"
)

type createOrderRequest struct {
	Items           []services.CreateOrderItem `json:"items"`
	ShippingAddress services.AddressInput      `json:"shippingAddress"`
	BillingAddress  *services.AddressInput     `json:"billingAddress"`
	Payment         struct {
		Method string `json:"method"`
	} `json:"payment"`
	Notes struct {
		Customer string `json:"customer"`
	} `json:"notes"`
}

type updatePaymentRequest struct {
	Status          string  `json:"status"`
	TransactionID   *string `json:"transactionId"`
	PaymentIntentID *string `json:"paymentIntentId"`
}

// OrderHandlers exposes the customer order endpoints and the public tracking lookup.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	trackLimit  rateLimiter
	idempotency func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithTrackRateLimit bounds anonymous tracking lookups per client address.
func WithTrackRateLimit(limit int, window time.Duration, clock func() time.Time) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.trackLimit = newWindowLimiter(limit, window, clock)
	}
}

// WithCreateOrderMiddleware wraps order creation, typically with idempotency replay.
func WithCreateOrderMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:      authn,
		orders:     orders,
		trackLimit: newWindowLimiter(defaultTrackRateLimit, defaultTrackRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	// The {orderID} segment carries the order number on the tracking route.
	r.Get("/{orderID}/track", h.trackOrder)

	r.Group(func(r chi.Router) {
		if h.authn != nil {
			r.Use(h.authn.Authenticate)
		}
		r.Get("/{orderID}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleCustomer))
			create := http.Handler(http.HandlerFunc(h.createOrder))
			if h.idempotency != nil {
				create = h.idempotency(create)
			}
			r.Method(http.MethodPost, "/", create)
			r.With(pagination.Middleware(writePagingError)).Get("/", h.listOrders)
			r.Put("/{orderID}/cancel", h.cancelOrder)
			r.Put("/{orderID}/payment", h.updatePayment)
		})
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(w, r, maxCreateOrderBodySize, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		CustomerID:      identity.UID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   domain.PaymentMethod(strings.TrimSpace(req.Payment.Method)),
		CustomerNote:    req.Notes.Customer,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params := pagingParams(r)
	page, err := h.orders.ListOrders(ctx, services.ListOrdersQuery{
		CustomerID: identity.UID,
		Status:     domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Page:       params.Page,
		Limit:      params.Limit,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, false))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, orderID, services.Requester{
		UserID: identity.UID,
		Admin:  identity.IsAdmin(),
		Vendor: identity.IsVendor(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, identity.IsAdmin())})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID:    strings.TrimSpace(chi.URLParam(r, "orderID")),
		CustomerID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) updatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updatePaymentRequest
	if !decodeJSONBody(w, r, maxOrderUpdateBodySize, &req) {
		return
	}

	order, err := h.orders.UpdatePayment(ctx, services.UpdatePaymentCommand{
		OrderID:         strings.TrimSpace(chi.URLParam(r, "orderID")),
		CustomerID:      identity.UID,
		Status:          domain.PaymentStatus(strings.TrimSpace(req.Status)),
		TransactionID:   req.TransactionID,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	if h.trackLimit != nil {
		if ok, wait := h.trackLimit.Allow(clientKey(r)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many tracking requests", http.StatusTooManyRequests))
			return
		}
	}

	tracking, err := h.orders.TrackOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTrackingResponse(tracking))
}

func clientKey(r *http.Request) string {
	if ip := requestctx.ClientIP(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var validation *services.ValidationError
	if errors.As(err, &validation) && len(validation.Fields) > 0 {
		fields := make([]httpx.FieldDetail, 0, len(validation.Fields))
		for _, f := range validation.Fields {
			fields = append(fields, httpx.FieldDetail{Field: f.Field, Message: f.Message})
		}
		httpx.WriteError(ctx, w, httpx.ValidationFailed(fields...))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrVendorNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("vendor_not_found", "vendor profile not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process order request", http.StatusInternalServerError))
	}
}
