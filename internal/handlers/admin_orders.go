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

type adminSetStatusRequest struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Restock bool   `json:"restock"`
}

type adjustInventoryRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdminHandlers exposes staff-only order oversight and stock corrections.
type AdminHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	inventory services.InventoryService
}

// NewAdminHandlers constructs handlers restricted to the admin role.
func NewAdminHandlers(authn *auth.Authenticator, orders services.OrderService, inventory services.InventoryService) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		orders:    orders,
		inventory: inventory,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Authenticate)
	}
	r.Use(auth.RequireRole(auth.RoleAdmin))
	r.With(pagination.Middleware(writePagingError)).Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Put("/orders/{orderID}/status", h.setOrderStatus)
	r.Post("/products/{productID}/inventory", h.adjustInventory)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}

	params := pagingParams(r)
	query := r.URL.Query()
	page, err := h.orders.AdminListOrders(ctx, services.AdminOrdersQuery{
		Status: domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
		Search: strings.TrimSpace(query.Get("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, true))
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")), services.Requester{
		UserID: identity.UID,
		Admin:  true,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminHandlers) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", orderServiceUnavailable, http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req adminSetStatusRequest
	if !decodeJSONBody(w, r, maxOrderUpdateBodySize, &req) {
		return
	}

	order, err := h.orders.AdminSetOrderStatus(ctx, services.AdminSetStatusCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		ActorID: identity.UID,
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
		Reason:  req.Reason,
		Restock: req.Restock,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminHandlers) adjustInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req adjustInventoryRequest
	if !decodeJSONBody(w, r, maxOrderUpdateBodySize, &req) {
		return
	}

	product, err := h.inventory.AdjustInventory(ctx, services.AdjustInventoryCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Delta:     req.Delta,
		ActorID:   identity.UID,
		Reason:    req.Reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productInventoryResponse{Product: buildProductInventoryPayload(product)})
}
