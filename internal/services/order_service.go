package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix = "ord_"
	itemIDPrefix  = "itm_"

	placeAttempts  = 3
	updateAttempts = 5

	statsTimeout = 10 * time.Second
)

const (
	messageOrderCreated    = "Order created"
	messageCancelledByUser = "Order cancelled by customer"
	messagePaymentComplete = "Payment completed"
	messagePaymentFailed   = "Payment failed"
)

var cancellableStatuses = []OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusConfirmed,
}

// FormatOrderNumber renders a sequence value as a human-readable order number.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("ORD%06d", seq)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Vendors     repositories.VendorRepository
	Pricing     *OrderPricingEngine
	Stats       VendorStatsService
	Metrics     OrderMetrics
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	catalog  repositories.CatalogRepository
	vendors  repositories.VendorRepository
	pricing  *OrderPricingEngine
	stats    VendorStatsService
	metrics  OrderMetrics
	validate *validator.Validate
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("order service: vendor repository is required")
	}

	pricing := deps.Pricing
	if pricing == nil {
		engine, err := NewOrderPricingEngine(domain.DefaultPricingPolicy)
		if err != nil {
			return nil, err
		}
		pricing = engine
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopOrderMetrics{}
	}

	return &orderService{
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		vendors:  deps.Vendors,
		pricing:  pricing,
		stats:    deps.Stats,
		metrics:  metrics,
		validate: newOrderValidator(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	cmd.CustomerID = strings.TrimSpace(cmd.CustomerID)
	if err := s.validate.Struct(cmd); err != nil {
		return Order{}, translateValidation(err)
	}

	requests, err := mergeOrderItems(cmd.Items)
	if err != nil {
		return Order{}, err
	}

	// Validate everything before any mutation so a rejected order leaves no trace.
	items := make([]OrderLineItem, 0, len(requests))
	lines := make([]domain.PricingLine, 0, len(requests))
	reservations := make([]domain.InventoryAdjustment, 0, len(requests))
	for _, req := range requests {
		product, err := s.catalog.FindProduct(ctx, req.ProductID)
		if err != nil {
			return Order{}, mapRepositoryError(err, ErrProductNotFound)
		}
		if !product.IsActive() {
			return Order{}, fmt.Errorf("%w: %s is not available", ErrProductUnavailable, product.Title)
		}
		if !product.CanFulfil(req.Quantity) {
			return Order{}, fmt.Errorf("%w: insufficient stock for %s (available %d, requested %d)", ErrInsufficientStock, product.Title, product.Inventory.Quantity, req.Quantity)
		}

		subtotal, err := LineSubtotal(product.Price, req.Quantity)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		items = append(items, OrderLineItem{
			ID:        itemIDPrefix + s.newID(),
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Title:     product.Title,
			Price:     product.Price,
			Quantity:  req.Quantity,
			Subtotal:  subtotal,
			Status:    domain.OrderStatusPending,
		})
		lines = append(lines, domain.PricingLine{Price: product.Price, Quantity: req.Quantity})
		reservations = append(reservations, domain.InventoryAdjustment{ProductID: product.ID, Delta: -req.Quantity})
	}

	pricing, err := s.pricing.Compute(PricingInput{Lines: lines})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	now := s.now()
	shipping := toAddress(cmd.ShippingAddress)
	billing := domain.BillingAddress{Address: shipping, SameAsShipping: true}
	if cmd.BillingAddress != nil {
		billing = domain.BillingAddress{Address: toAddress(*cmd.BillingAddress)}
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		CustomerID:      cmd.CustomerID,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Payment: domain.Payment{
			Method:   cmd.PaymentMethod,
			Status:   domain.PaymentStatusPending,
			Amount:   pricing.Total,
			Currency: domain.DefaultCurrency,
		},
		Pricing:   pricing,
		Notes:     domain.OrderNotes{Customer: strings.TrimSpace(cmd.CustomerNote)},
		CreatedAt: now,
	}
	order.AppendTimeline(domain.OrderStatusPending, messageOrderCreated, cmd.CustomerID, now)

	var result repositories.PlaceOrderResult
	for attempt := 1; ; attempt++ {
		result, err = s.orders.Place(ctx, repositories.PlaceOrderRequest{
			Order:        order,
			Reservations: reservations,
			OrderNumber:  FormatOrderNumber,
		})
		if err == nil {
			break
		}
		if !isConflict(err) || attempt >= placeAttempts {
			return Order{}, mapRepositoryError(err, ErrProductNotFound)
		}
		s.logger(ctx, "order.place.retry", map[string]any{
			"orderId": order.ID,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}

	created := result.Order
	s.metrics.OrderCreated()
	s.logger(ctx, orderEventCreated, map[string]any{
		"orderId":     created.ID,
		"orderNumber": created.OrderNumber,
		"customerId":  created.CustomerID,
		"total":       created.Pricing.Total,
		"items":       len(created.Items),
	})
	s.reportLowStock(ctx, result.Products)
	s.recordVendorStats(ctx, created)

	return created, nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.Page[Order], error) {
	customerID := strings.TrimSpace(query.CustomerID)
	if customerID == "" {
		return domain.Page[Order]{}, NewValidationError("customer", "Customer is required")
	}
	if err := validateStatusFilter("status", query.Status); err != nil {
		return domain.Page[Order]{}, err
	}
	page, limit, err := normalizePaging(query.Page, query.Limit)
	if err != nil {
		return domain.Page[Order]{}, err
	}

	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		CustomerID: customerID,
		Status:     query.Status,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err, nil)
	}
	return result, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, requester Requester) (Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if requester.Admin || (requester.UserID != "" && order.CustomerID == requester.UserID) {
		return order, nil
	}
	if requester.Vendor && requester.UserID != "" {
		vendor, err := s.vendors.FindByOwner(ctx, requester.UserID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
				return Order{}, mapRepositoryError(err, ErrVendorNotFound)
			}
		} else if order.HasVendor(vendor.ID) {
			return order, nil
		}
	}
	return Order{}, fmt.Errorf("%w: not authorized to view this order", ErrOrderForbidden)
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	return s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]domain.InventoryAdjustment, error) {
		if order.CustomerID != customerID {
			return nil, fmt.Errorf("%w: not authorized to cancel this order", ErrOrderForbidden)
		}
		if !slices.Contains(cancellableStatuses, order.Status) {
			return nil, fmt.Errorf("%w: order cannot be cancelled at this stage (status %s)", ErrOrderInvalidTransition, order.Status)
		}
		s.applyStatus(order, domain.OrderStatusCancelled, messageCancelledByUser, customerID, now)
		return s.restock(order), nil
	})
}

func (s *orderService) UpdatePayment(ctx context.Context, cmd UpdatePaymentCommand) (Order, error) {
	if !cmd.Status.Valid() {
		return Order{}, NewValidationError("status", "Invalid payment status")
	}
	if cmd.PaymentIntentID != nil && strings.TrimSpace(*cmd.PaymentIntentID) == "" {
		return Order{}, NewValidationError("paymentIntentId", "Payment Intent ID cannot be empty")
	}
	customerID := strings.TrimSpace(cmd.CustomerID)

	return s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]domain.InventoryAdjustment, error) {
		if order.CustomerID != customerID {
			return nil, fmt.Errorf("%w: not authorized to update this order", ErrOrderForbidden)
		}
		if (cmd.Status == domain.PaymentStatusCompleted || cmd.Status == domain.PaymentStatusFailed) && order.Status != domain.OrderStatusPending {
			return nil, fmt.Errorf("%w: payment cannot be %s while order is %s", ErrOrderInvalidTransition, cmd.Status, order.Status)
		}

		order.Payment.Status = cmd.Status
		if cmd.TransactionID != nil && strings.TrimSpace(*cmd.TransactionID) != "" {
			order.Payment.TransactionID = strings.TrimSpace(*cmd.TransactionID)
		}
		if cmd.PaymentIntentID != nil {
			order.Payment.PaymentIntentID = strings.TrimSpace(*cmd.PaymentIntentID)
		}
		order.UpdatedAt = now

		switch cmd.Status {
		case domain.PaymentStatusCompleted:
			order.Payment.PaidAt = &now
			s.applyStatus(order, domain.OrderStatusConfirmed, messagePaymentComplete, customerID, now)
		case domain.PaymentStatusFailed:
			// Cancels without restoring stock. An admin status update with restock returns it.
			s.applyStatus(order, domain.OrderStatusCancelled, messagePaymentFailed, customerID, now)
		case domain.PaymentStatusRefunded:
			order.Payment.RefundedAt = &now
			order.Payment.RefundAmount = order.Payment.Amount
		}
		return nil, nil
	})
}

func (s *orderService) TrackOrder(ctx context.Context, orderNumber string) (OrderTracking, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return OrderTracking{}, NewValidationError("orderNumber", "Order number is required")
	}
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return OrderTracking{}, mapRepositoryError(err, ErrOrderNotFound)
	}

	names := make(map[string]string)
	for _, vendorID := range order.VendorIDs() {
		vendor, err := s.vendors.FindByID(ctx, vendorID)
		if err != nil {
			s.logger(ctx, "order.track.vendor_lookup_failed", map[string]any{
				"vendorId": vendorID,
				"error":    err.Error(),
			})
			continue
		}
		names[vendorID] = vendor.StoreName
	}

	items := make([]TrackedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, TrackedItem{
			Title:          item.Title,
			VendorID:       item.VendorID,
			VendorName:     names[item.VendorID],
			Status:         item.Status,
			TrackingNumber: item.TrackingNumber,
		})
	}
	return OrderTracking{
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Timeline:    order.Timeline,
		Shipping:    order.Shipping,
		Items:       items,
	}, nil
}

func (s *orderService) UpdateOrderItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (Order, error) {
	if !cmd.Status.Valid() {
		return Order{}, NewValidationError("status", "Invalid status")
	}
	vendorUserID := strings.TrimSpace(cmd.VendorUserID)
	vendor, err := s.vendors.FindByOwner(ctx, vendorUserID)
	if err != nil {
		return Order{}, mapRepositoryError(err, ErrVendorNotFound)
	}
	itemID := strings.TrimSpace(cmd.ItemID)

	return s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]domain.InventoryAdjustment, error) {
		idx := order.ItemIndex(itemID)
		if idx < 0 {
			return nil, fmt.Errorf("%w: order item %s not found", ErrOrderNotFound, itemID)
		}
		item := &order.Items[idx]
		if item.VendorID != vendor.ID {
			return nil, fmt.Errorf("%w: order item not found or not authorized", ErrOrderForbidden)
		}
		if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusReturned {
			return nil, fmt.Errorf("%w: order is %s", ErrOrderInvalidTransition, order.Status)
		}

		item.Status = cmd.Status
		if cmd.TrackingNumber != nil {
			if tracking := strings.TrimSpace(*cmd.TrackingNumber); tracking != "" {
				item.TrackingNumber = tracking
				order.Shipping.TrackingNumber = tracking
			}
		}
		// The item's status also becomes the whole order's status, whatever the other
		// vendors' items say.
		message := fmt.Sprintf("Item %q status updated by vendor", item.Title)
		s.applyStatus(order, cmd.Status, message, vendorUserID, now)
		return nil, nil
	})
}

func (s *orderService) ListVendorOrders(ctx context.Context, query VendorOrdersQuery) (domain.Page[Order], error) {
	if err := validateStatusFilter("status", query.ItemStatus); err != nil {
		return domain.Page[Order]{}, err
	}
	page, limit, err := normalizePaging(query.Page, query.Limit)
	if err != nil {
		return domain.Page[Order]{}, err
	}
	vendor, err := s.vendors.FindByOwner(ctx, strings.TrimSpace(query.VendorUserID))
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err, ErrVendorNotFound)
	}

	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		VendorID:   vendor.ID,
		ItemStatus: query.ItemStatus,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err, nil)
	}
	for i, order := range result.Items {
		result.Items[i] = order.ItemsForVendor(vendor.ID)
	}
	return result, nil
}

func (s *orderService) AdminListOrders(ctx context.Context, query AdminOrdersQuery) (domain.Page[Order], error) {
	if err := validateStatusFilter("status", query.Status); err != nil {
		return domain.Page[Order]{}, err
	}
	page, limit, err := normalizePaging(query.Page, query.Limit)
	if err != nil {
		return domain.Page[Order]{}, err
	}
	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:       query.Status,
		NumberSearch: strings.TrimSpace(query.Search),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err, nil)
	}
	return result, nil
}

func (s *orderService) AdminSetOrderStatus(ctx context.Context, cmd AdminSetStatusCommand) (Order, error) {
	if !cmd.Status.Valid() {
		return Order{}, NewValidationError("status", "Invalid status")
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	message := strings.TrimSpace(cmd.Reason)
	if message == "" {
		message = fmt.Sprintf("Order status updated to %s", cmd.Status)
	}

	return s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]domain.InventoryAdjustment, error) {
		s.applyStatus(order, cmd.Status, message, actorID, now)
		if cmd.Restock && (cmd.Status == domain.OrderStatusCancelled || cmd.Status == domain.OrderStatusReturned) {
			return s.restock(order), nil
		}
		return nil, nil
	})
}

// mutate loads the order, applies fn and writes it back under optimistic concurrency,
// reloading and reapplying on version conflicts.
func (s *orderService) mutate(ctx context.Context, orderID string, fn func(order *Order, now time.Time) ([]domain.InventoryAdjustment, error)) (Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		previous := order.Status
		expected := order.Version

		now := s.now()
		restock, err := fn(&order, now)
		if err != nil {
			return Order{}, err
		}

		updated, err := s.orders.Update(ctx, repositories.OrderUpdateRequest{
			Order:           order,
			ExpectedVersion: expected,
			Restock:         restock,
		})
		if err == nil {
			if updated.Status != previous {
				s.metrics.OrderTransitioned(updated.Status)
			}
			s.logger(ctx, orderEventStatusChanged, map[string]any{
				"orderId":        updated.ID,
				"orderNumber":    updated.OrderNumber,
				"previousStatus": string(previous),
				"status":         string(updated.Status),
				"restocked":      len(restock) > 0,
			})
			return updated, nil
		}
		if !isConflict(err) || attempt >= updateAttempts {
			return Order{}, mapRepositoryError(err, ErrOrderNotFound)
		}
		s.logger(ctx, "order.update.retry", map[string]any{
			"orderId": order.ID,
			"attempt": attempt,
		})
	}
}

func (s *orderService) load(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, NewValidationError("orderId", "Order ID is required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return order, nil
}

// applyStatus appends a timeline entry and stamps shipment milestones.
func (s *orderService) applyStatus(order *Order, status OrderStatus, message, actorID string, now time.Time) {
	order.AppendTimeline(status, message, actorID, now)
	switch status {
	case domain.OrderStatusShipped:
		if order.Shipping.ShippedAt == nil {
			order.Shipping.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.Shipping.DeliveredAt == nil {
			order.Shipping.DeliveredAt = &now
		}
	}
}

// restock returns the order's reservations once.
func (s *orderService) restock(order *Order) []domain.InventoryAdjustment {
	if order.InventoryRestored {
		return nil
	}
	order.InventoryRestored = true
	return order.StockReturns()
}

func (s *orderService) reportLowStock(ctx context.Context, products []domain.Product) {
	for _, product := range products {
		if !product.LowStock() {
			continue
		}
		s.metrics.LowStock(product.ID)
		s.logger(ctx, "inventory.low_stock", map[string]any{
			"productId": product.ID,
			"quantity":  product.Inventory.Quantity,
			"threshold": product.Inventory.LowStockThreshold,
		})
	}
}

// recordVendorStats runs after commit and never fails the request.
func (s *orderService) recordVendorStats(ctx context.Context, order Order) {
	if s.stats == nil {
		return
	}
	statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
	defer cancel()
	if err := s.stats.RecordOrder(statsCtx, order); err != nil {
		s.metrics.VendorStatsFailed()
		s.logger(ctx, "vendor.stats.failed", map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"error":       err.Error(),
		})
	}
}

func (s *orderService) now() time.Time {
	return s.clock()
}

// mergeOrderItems folds repeated product ids into one request, keeping first-seen order.
// Quantities are already validated as positive, so a sum past MaxInt is the only overflow.
func mergeOrderItems(items []CreateOrderItem) ([]CreateOrderItem, error) {
	merged := make([]CreateOrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if pos, ok := index[id]; ok {
			if merged[pos].Quantity > math.MaxInt-item.Quantity {
				return nil, NewValidationError(fmt.Sprintf("items[%d].quantity", i), messageQuantityTooLarge)
			}
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, CreateOrderItem{ProductID: id, Quantity: item.Quantity})
	}
	return merged, nil
}

func toAddress(in AddressInput) domain.Address {
	return domain.Address{
		FullName: strings.TrimSpace(in.FullName),
		Street:   strings.TrimSpace(in.Street),
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		ZipCode:  strings.TrimSpace(in.ZipCode),
		Country:  strings.TrimSpace(in.Country),
		Phone:    strings.TrimSpace(in.Phone),
	}
}

type noopOrderMetrics struct{}

func (noopOrderMetrics) OrderCreated() {}

func (noopOrderMetrics) OrderTransitioned(OrderStatus) {}

func (noopOrderMetrics) VendorStatsFailed() {}

func (noopOrderMetrics) LowStock(string) {}
