// Package memory provides a mutex-guarded repository backend for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
)

func notFound(op, kind, id string) error {
	return repositories.NotFound(op, "%s %s not found", kind, id)
}

func conflict(op, msg string) error {
	return repositories.Conflict(op, "%s", msg)
}

// Store holds every collection behind one lock so that placement and updates are atomic.
type Store struct {
	mu           sync.Mutex
	orders       map[string]domain.Order
	orderNumbers map[string]string
	products     map[string]domain.Product
	vendors      map[string]domain.Vendor
	counters     map[string]int64
	appliedStats map[string]struct{}
}

var _ repositories.Registry = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		orders:       make(map[string]domain.Order),
		orderNumbers: make(map[string]string),
		products:     make(map[string]domain.Product),
		vendors:      make(map[string]domain.Vendor),
		counters:     make(map[string]int64),
		appliedStats: make(map[string]struct{}),
	}
}

// PutProduct seeds or replaces a product.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// PutVendor seeds or replaces a vendor.
func (s *Store) PutVendor(vendor domain.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[vendor.ID] = vendor
}

// SetCounter positions a sequence so the next draw returns value+1.
func (s *Store) SetCounter(name string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] = value
}

func (s *Store) Orders() repositories.OrderRepository { return orderRepo{s} }

func (s *Store) Catalog() repositories.CatalogRepository { return catalogRepo{s} }

func (s *Store) Vendors() repositories.VendorRepository { return vendorRepo{s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

type orderRepo struct{ s *Store }

func (r orderRepo) Place(ctx context.Context, req repositories.PlaceOrderRequest) (repositories.PlaceOrderResult, error) {
	const op = "memory.orders.place"
	if err := ctx.Err(); err != nil {
		return repositories.PlaceOrderResult{}, err
	}
	if req.OrderNumber == nil {
		return repositories.PlaceOrderResult{}, fmt.Errorf("%s: order number formatter is required", op)
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[req.Order.ID]; exists {
		return repositories.PlaceOrderResult{}, conflict(op, "order id "+req.Order.ID+" already exists")
	}

	// Validate every reservation before touching stock.
	updated := make(map[string]domain.Product, len(req.Reservations))
	touched := make([]string, 0, len(req.Reservations))
	for _, adj := range req.Reservations {
		product, ok := updated[adj.ProductID]
		if !ok {
			product, ok = s.products[adj.ProductID]
			if !ok {
				return repositories.PlaceOrderResult{}, repositories.NewInventoryError(op, repositories.InventoryErrorProductNotFound, adj.ProductID)
			}
			touched = append(touched, adj.ProductID)
		}
		if !product.IsActive() {
			return repositories.PlaceOrderResult{}, repositories.NewInventoryError(op, repositories.InventoryErrorProductUnavailable, adj.ProductID)
		}
		if product.Inventory.TrackQuantity {
			next := product.Inventory.Quantity + adj.Delta
			if next < 0 {
				return repositories.PlaceOrderResult{}, repositories.NewInsufficientStockError(op, adj.ProductID, -adj.Delta, product.Inventory.Quantity)
			}
			product.Inventory.Quantity = next
		}
		updated[adj.ProductID] = product
	}

	seq := s.counters[repositories.OrderCounterID] + 1
	number := req.OrderNumber(seq)
	if _, taken := s.orderNumbers[number]; taken {
		// Sequence values are consumed even when the number collides.
		s.counters[repositories.OrderCounterID] = seq
		return repositories.PlaceOrderResult{}, conflict(op, "order number "+number+" already exists")
	}

	order := cloneOrder(req.Order)
	order.OrderNumber = number
	order.Version = 1

	s.counters[repositories.OrderCounterID] = seq
	products := make([]domain.Product, 0, len(touched))
	for _, id := range touched {
		product := updated[id]
		product.UpdatedAt = order.CreatedAt
		s.products[id] = product
		products = append(products, product)
	}
	s.orders[order.ID] = order
	s.orderNumbers[number] = order.ID

	return repositories.PlaceOrderResult{Order: cloneOrder(order), Products: products}, nil
}

func (r orderRepo) Update(ctx context.Context, req repositories.OrderUpdateRequest) (domain.Order, error) {
	const op = "memory.orders.update"
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[req.Order.ID]
	if !ok {
		return domain.Order{}, notFound(op, "order", req.Order.ID)
	}
	if current.Version != req.ExpectedVersion {
		return domain.Order{}, conflict(op, fmt.Sprintf("order %s version %d, expected %d", current.ID, current.Version, req.ExpectedVersion))
	}

	restocked := make(map[string]domain.Product, len(req.Restock))
	for _, adj := range req.Restock {
		product, ok := restocked[adj.ProductID]
		if !ok {
			product, ok = s.products[adj.ProductID]
			if !ok {
				// Deleted products have nothing to restock.
				continue
			}
		}
		if product.Inventory.TrackQuantity {
			next := product.Inventory.Quantity + adj.Delta
			if next < 0 {
				return domain.Order{}, repositories.NewInsufficientStockError(op, adj.ProductID, -adj.Delta, product.Inventory.Quantity)
			}
			product.Inventory.Quantity = next
		}
		restocked[adj.ProductID] = product
	}

	order := cloneOrder(req.Order)
	order.Version = current.Version + 1
	order.OrderNumber = current.OrderNumber
	order.CustomerID = current.CustomerID
	order.CreatedAt = current.CreatedAt

	for id, product := range restocked {
		product.UpdatedAt = order.UpdatedAt
		s.products[id] = product
	}
	s.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (r orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("memory.orders.find", "order", orderID)
	}
	return cloneOrder(order), nil
}

func (r orderRepo) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.orderNumbers[orderNumber]
	if !ok {
		return domain.Order{}, notFound("memory.orders.findByNumber", "order", orderNumber)
	}
	return cloneOrder(r.s.orders[id]), nil
}

func (r orderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if err := ctx.Err(); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.NumberSearch))
	matched := make([]domain.Order, 0)
	for _, order := range r.s.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.VendorID != "" && !order.HasVendor(filter.VendorID) {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.ItemStatus != "" && !hasItemStatus(order, filter.ItemStatus) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(order.OrderNumber), search) {
			continue
		}
		matched = append(matched, order)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := domain.Page[domain.Order]{Page: filter.Page, Limit: filter.Limit, Total: int64(len(matched))}
	start := (filter.Page - 1) * filter.Limit
	if filter.Page < 1 || filter.Limit < 1 || start >= len(matched) {
		page.Items = []domain.Order{}
		return page, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = make([]domain.Order, 0, end-start)
	for _, order := range matched[start:end] {
		page.Items = append(page.Items, cloneOrder(order))
	}
	return page, nil
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[productID]
	if !ok {
		return domain.Product{}, notFound("memory.catalog.find", "product", productID)
	}
	return product, nil
}

func (r catalogRepo) AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error) {
	const op = "memory.catalog.adjust"
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[productID]
	if !ok {
		return domain.Product{}, notFound(op, "product", productID)
	}
	if product.Inventory.TrackQuantity {
		next := product.Inventory.Quantity + delta
		if next < 0 {
			return domain.Product{}, repositories.NewInsufficientStockError(op, productID, -delta, product.Inventory.Quantity)
		}
		product.Inventory.Quantity = next
	}
	r.s.products[productID] = product
	return product, nil
}

type vendorRepo struct{ s *Store }

func (r vendorRepo) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return domain.Vendor{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	vendor, ok := r.s.vendors[vendorID]
	if !ok {
		return domain.Vendor{}, notFound("memory.vendors.find", "vendor", vendorID)
	}
	return vendor, nil
}

func (r vendorRepo) FindByOwner(ctx context.Context, userID string) (domain.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return domain.Vendor{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, vendor := range r.s.vendors {
		if vendor.UserID == userID {
			return vendor, nil
		}
	}
	return domain.Vendor{}, notFound("memory.vendors.findByOwner", "vendor for user", userID)
}

func (r vendorRepo) IncrementStats(ctx context.Context, key, vendorID string, inc repositories.VendorStatsIncrement) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, done := r.s.appliedStats[key]; done {
		return false, nil
	}
	vendor, ok := r.s.vendors[vendorID]
	if !ok {
		return false, notFound("memory.vendors.incrementStats", "vendor", vendorID)
	}
	vendor.Stats.TotalOrders += inc.Orders
	vendor.Stats.TotalRevenue += inc.Revenue
	r.s.vendors[vendorID] = vendor
	r.s.appliedStats[key] = struct{}{}
	return true, nil
}

func hasItemStatus(order domain.Order, status domain.OrderStatus) bool {
	for _, item := range order.Items {
		if item.Status == status {
			return true
		}
	}
	return false
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = append([]domain.OrderLineItem(nil), order.Items...)
	out.Timeline = append([]domain.TimelineEntry(nil), order.Timeline...)
	out.Payment.PaidAt = cloneTime(order.Payment.PaidAt)
	out.Payment.RefundedAt = cloneTime(order.Payment.RefundedAt)
	out.Shipping.EstimatedDelivery = cloneTime(order.Shipping.EstimatedDelivery)
	out.Shipping.ShippedAt = cloneTime(order.Shipping.ShippedAt)
	out.Shipping.DeliveredAt = cloneTime(order.Shipping.DeliveredAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
