package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/auth"
	"github.com/shopmart/api/internal/platform/httpx"
	"github.com/shopmart/api/internal/platform/pagination"
	"github.com/shopmart/api/internal/services"
)

type updateItemStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"trackingNumber"`
}

// VendorOrderHandlers serves the vendor dashboard and item fulfilment updates.
type VendorOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewVendorOrderHandlers constructs handlers restricted to the vendor role.
func NewVendorOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *VendorOrderHandlers {
	return &VendorOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /vendors endpoints.
func (h *VendorOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Authenticate)
	}
	r.Use(auth.RequireRole(auth.RoleVendor))
	r.With(pagination.Middleware(writePagingError)).Get("/dashboard/orders", h.listOrders)
	r.Put("/orders/{orderID}/items/{itemID}", h.updateItemStatus)
}

func (h *VendorOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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
	page, err := h.orders.ListVendorOrders(ctx, services.VendorOrdersQuery{
		VendorUserID: identity.UID,
		ItemStatus:   domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Page:         params.Page,
		Limit:        params.Limit,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, false))
}

func (h *VendorOrderHandlers) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updateItemStatusRequest
	if !decodeJSONBody(w, r, maxOrderUpdateBodySize, &req) {
		return
	}

	order, err := h.orders.UpdateOrderItemStatus(ctx, services.UpdateItemStatusCommand{
		OrderID:        strings.TrimSpace(chi.URLParam(r, "orderID")),
		ItemID:         strings.TrimSpace(chi.URLParam(r, "itemID")),
		VendorUserID:   identity.UID,
		Status:         domain.OrderStatus(strings.TrimSpace(req.Status)),
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}
