package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/shopmart/api/internal/domain"
	pfirestore "github.com/shopmart/api/internal/platform/firestore"
	"github.com/shopmart/api/internal/repositories"
)

// OrderRepository stores orders in Firestore. Placement and updates run in a single
// transaction together with the product documents they touch.
type OrderRepository struct {
	provider     *pfirestore.Provider
	orders       *pfirestore.Collection[domain.Order]
	products     *pfirestore.Collection[domain.Product]
	counters     *pfirestore.Collection[counterDocument]
	orderNumbers *pfirestore.Collection[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs the Firestore order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:     provider,
		orders:       newOrderCollection(provider),
		products:     newProductCollection(provider),
		counters:     pfirestore.NewCollection(provider, countersCollection, pfirestore.Codec[counterDocument]{}),
		orderNumbers: pfirestore.NewCollection(provider, orderNumbersCollection, pfirestore.Codec[orderNumberDocument]{}),
	}, nil
}

func newOrderCollection(provider *pfirestore.Provider) *pfirestore.Collection[domain.Order] {
	return pfirestore.NewCollection(provider, ordersCollection, pfirestore.Codec[domain.Order]{
		Encode: func(o domain.Order) any { return newOrderDocument(o) },
		Decode: func(snap *firestore.DocumentSnapshot) (domain.Order, error) {
			var doc orderDocument
			if err := snap.DataTo(&doc); err != nil {
				return domain.Order{}, err
			}
			order := doc.toDomain()
			order.ID = snap.Ref.ID
			return order, nil
		},
	})
}

func newProductCollection(provider *pfirestore.Provider) *pfirestore.Collection[domain.Product] {
	return pfirestore.NewCollection(provider, productsCollection, pfirestore.Codec[domain.Product]{
		Encode: func(p domain.Product) any { return newProductDocument(p) },
		Decode: func(snap *firestore.DocumentSnapshot) (domain.Product, error) {
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return domain.Product{}, err
			}
			return doc.toDomain(snap.Ref.ID), nil
		},
	})
}

func (r *OrderRepository) Place(ctx context.Context, req repositories.PlaceOrderRequest) (repositories.PlaceOrderResult, error) {
	const op = "firestore.orders.place"
	if req.OrderNumber == nil {
		return repositories.PlaceOrderResult{}, fmt.Errorf("%s: order number formatter is required", op)
	}

	var (
		result    repositories.PlaceOrderResult
		collision string
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result, collision = repositories.PlaceOrderResult{}, ""
		orderRef, exists, err := pfirestore.TxExists(ctx, tx, r.orders, req.Order.ID)
		if err != nil {
			return err
		}
		if exists {
			return repositories.Conflict(op, "order id %s already exists", req.Order.ID)
		}

		touched, err := r.reserve(ctx, tx, op, req.Reservations)
		if err != nil {
			return err
		}

		counter, counterRef, _, err := pfirestore.TxGet(ctx, tx, r.counters, repositories.OrderCounterID)
		if err != nil {
			return err
		}

		seq := counter.CurrentValue + 1
		number := req.OrderNumber(seq)
		numberRef, numberTaken, err := pfirestore.TxExists(ctx, tx, r.orderNumbers, number)
		if err != nil {
			return err
		}

		order := req.Order
		counter.CurrentValue = seq
		counter.UpdatedAt = order.CreatedAt.UTC()
		if err := tx.Set(counterRef, counter); err != nil {
			return err
		}
		if numberTaken {
			// Commit the consumed sequence value, then report the collision.
			collision = number
			return nil
		}

		order.OrderNumber = number
		order.Version = 1
		products := make([]domain.Product, 0, len(touched))
		for _, pr := range touched {
			pr.product.UpdatedAt = order.CreatedAt
			if err := tx.Update(pr.ref, inventoryUpdates(pr.product)); err != nil {
				return err
			}
			products = append(products, pr.product)
		}
		if err := tx.Create(orderRef, r.orders.Encode(order)); err != nil {
			return err
		}
		if err := tx.Create(numberRef, orderNumberDocument{OrderID: order.ID}); err != nil {
			return err
		}
		result = repositories.PlaceOrderResult{Order: order, Products: products}
		return nil
	}, pfirestore.WithTxOperation(op))
	if err != nil {
		return repositories.PlaceOrderResult{}, err
	}
	if collision != "" {
		return repositories.PlaceOrderResult{}, repositories.Conflict(op, "order number %s already exists", collision)
	}
	return result, nil
}

type touchedProduct struct {
	ref     *firestore.DocumentRef
	product domain.Product
}

// reserve reads every product the reservations name and applies the deltas in memory.
// Nothing is written; callers persist the returned products after their remaining reads.
func (r *OrderRepository) reserve(ctx context.Context, tx *firestore.Transaction, op string, adjustments []domain.InventoryAdjustment) ([]*touchedProduct, error) {
	byID := make(map[string]*touchedProduct, len(adjustments))
	touched := make([]*touchedProduct, 0, len(adjustments))
	for _, adj := range adjustments {
		pr, ok := byID[adj.ProductID]
		if !ok {
			product, ref, found, err := pfirestore.TxGet(ctx, tx, r.products, adj.ProductID)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, repositories.NewInventoryError(op, repositories.InventoryErrorProductNotFound, adj.ProductID)
			}
			pr = &touchedProduct{ref: ref, product: product}
			byID[adj.ProductID] = pr
			touched = append(touched, pr)
		}
		if !pr.product.IsActive() {
			return nil, repositories.NewInventoryError(op, repositories.InventoryErrorProductUnavailable, adj.ProductID)
		}
		if err := applyDelta(op, &pr.product, adj.Delta); err != nil {
			return nil, err
		}
	}
	return touched, nil
}

func (r *OrderRepository) Update(ctx context.Context, req repositories.OrderUpdateRequest) (domain.Order, error) {
	const op = "firestore.orders.update"

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, orderRef, found, err := pfirestore.TxGet(ctx, tx, r.orders, req.Order.ID)
		if err != nil {
			return err
		}
		if !found {
			return repositories.NotFound(op, "order %s not found", req.Order.ID)
		}
		if current.Version != req.ExpectedVersion {
			return repositories.Conflict(op, "order %s version %d, expected %d", current.ID, current.Version, req.ExpectedVersion)
		}

		restocked := make(map[string]*touchedProduct, len(req.Restock))
		order := req.Order
		for _, adj := range req.Restock {
			pr, ok := restocked[adj.ProductID]
			if !ok {
				product, ref, found, err := pfirestore.TxGet(ctx, tx, r.products, adj.ProductID)
				if err != nil {
					return err
				}
				if !found {
					// Deleted products have nothing to restock.
					continue
				}
				pr = &touchedProduct{ref: ref, product: product}
				restocked[adj.ProductID] = pr
			}
			if err := applyDelta(op, &pr.product, adj.Delta); err != nil {
				return err
			}
		}

		order.Version = current.Version + 1
		order.OrderNumber = current.OrderNumber
		order.CustomerID = current.CustomerID
		order.CreatedAt = current.CreatedAt

		for _, pr := range restocked {
			pr.product.UpdatedAt = order.UpdatedAt
			if err := tx.Update(pr.ref, inventoryUpdates(pr.product)); err != nil {
				return err
			}
		}
		if err := tx.Set(orderRef, r.orders.Encode(order)); err != nil {
			return err
		}
		updated = order
		return nil
	}, pfirestore.WithTxOperation(op))
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.orders.Get(ctx, orderID)
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.orders.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", orderNumber)
	})
}

// List pushes equality filters and at most one array-contains filter to Firestore.
// Filters Firestore cannot express in the same query (a second array-contains, or a
// substring search on the order number) are applied after a full scan of the narrowed
// result, and paging then happens in memory.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	page := domain.Page[domain.Order]{Page: filter.Page, Limit: filter.Limit, Items: []domain.Order{}}
	if filter.Page < 1 || filter.Limit < 1 {
		return page, nil
	}

	search := strings.ToLower(strings.TrimSpace(filter.NumberSearch))
	residualItemStatus := filter.VendorID != "" && filter.ItemStatus != ""
	base := func(q firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		switch {
		case filter.VendorID != "":
			q = q.Where("vendorIds", "array-contains", filter.VendorID)
		case filter.ItemStatus != "":
			q = q.Where("itemStatuses", "array-contains", string(filter.ItemStatus))
		}
		return q.OrderBy("createdAt", firestore.Desc).OrderBy("orderNumber", firestore.Desc)
	}

	if search == "" && !residualItemStatus {
		total, err := r.orders.Count(ctx, base)
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		items, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
			return base(q).Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
		})
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		page.Total = total
		if items != nil {
			page.Items = items
		}
		return page, nil
	}

	all, err := r.orders.Query(ctx, base)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	matched := all[:0]
	for _, order := range all {
		if search != "" && !strings.Contains(strings.ToLower(order.OrderNumber), search) {
			continue
		}
		if residualItemStatus && !hasItemStatus(order, filter.ItemStatus) {
			continue
		}
		matched = append(matched, order)
	}
	sortOrders(matched)
	page.Total = int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+filter.Limit, len(matched))
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}

func applyDelta(op string, product *domain.Product, delta int) error {
	if !product.Inventory.TrackQuantity {
		return nil
	}
	next := product.Inventory.Quantity + delta
	if next < 0 {
		return repositories.NewInsufficientStockError(op, product.ID, -delta, product.Inventory.Quantity)
	}
	product.Inventory.Quantity = next
	return nil
}

func hasItemStatus(order domain.Order, s domain.OrderStatus) bool {
	for _, item := range order.Items {
		if item.Status == s {
			return true
		}
	}
	return false
}

func sortOrders(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber > orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
