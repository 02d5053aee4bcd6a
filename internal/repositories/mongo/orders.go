package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/mongodb"
	"github.com/shopmart/api/internal/repositories"
)

// OrderRepository stores orders in MongoDB. Placement and updates run inside a session
// transaction together with the product stock changes they carry.
type OrderRepository struct {
	client   *mongodb.Client
	orders   *mongo.Collection
	products *mongo.Collection
	counters *mongo.Collection
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs the MongoDB order repository.
func NewOrderRepository(client *mongodb.Client) (*OrderRepository, error) {
	if client == nil {
		return nil, errors.New("order repository requires mongodb client")
	}
	db := client.Database()
	return &OrderRepository{
		client:   client,
		orders:   db.Collection(ordersCollection),
		products: db.Collection(productsCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

func (r *OrderRepository) Place(ctx context.Context, req repositories.PlaceOrderRequest) (repositories.PlaceOrderResult, error) {
	const op = "mongo.orders.place"
	if req.OrderNumber == nil {
		return repositories.PlaceOrderResult{}, fmt.Errorf("%s: order number formatter is required", op)
	}

	var (
		result    repositories.PlaceOrderResult
		collision string
	)
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, collision = repositories.PlaceOrderResult{}, ""

		if exists, err := r.exists(sessCtx, bson.M{"_id": req.Order.ID}); err != nil {
			return err
		} else if exists {
			return repositories.Conflict(op, "order id %s already exists", req.Order.ID)
		}

		touched, err := r.reserve(sessCtx, op, req.Reservations)
		if err != nil {
			return err
		}

		var counter counterDocument
		err = r.counters.FindOneAndUpdate(sessCtx,
			bson.M{"_id": repositories.OrderCounterID},
			bson.M{"$inc": bson.M{"currentValue": 1}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&counter)
		if err != nil {
			return err
		}
		number := req.OrderNumber(counter.CurrentValue)
		if taken, err := r.exists(sessCtx, bson.M{"orderNumber": number}); err != nil {
			return err
		} else if taken {
			// Commit the consumed sequence value, then report the collision.
			collision = number
			return nil
		}

		order := req.Order
		order.OrderNumber = number
		order.Version = 1
		products, err := applyStock(sessCtx, r.products, op, touched, order.CreatedAt)
		if err != nil {
			return err
		}
		if _, err := r.orders.InsertOne(sessCtx, newOrderDocument(order)); err != nil {
			return err
		}
		result = repositories.PlaceOrderResult{Order: order, Products: products}
		return nil
	})
	if err != nil {
		return repositories.PlaceOrderResult{}, mongodb.WrapError(op, err)
	}
	if collision != "" {
		return repositories.PlaceOrderResult{}, repositories.Conflict(op, "order number %s already exists", collision)
	}
	return result, nil
}

func (r *OrderRepository) reserve(ctx context.Context, op string, adjustments []domain.InventoryAdjustment) ([]*stockChange, error) {
	byID := make(map[string]*stockChange, len(adjustments))
	touched := make([]*stockChange, 0, len(adjustments))
	for _, adj := range adjustments {
		change, ok := byID[adj.ProductID]
		if !ok {
			product, err := findProduct(ctx, r.products, adj.ProductID)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					return nil, repositories.NewInventoryError(op, repositories.InventoryErrorProductNotFound, adj.ProductID)
				}
				return nil, err
			}
			change = &stockChange{original: product}
			byID[adj.ProductID] = change
			touched = append(touched, change)
		}
		if !change.original.IsActive() {
			return nil, repositories.NewInventoryError(op, repositories.InventoryErrorProductUnavailable, adj.ProductID)
		}
		if err := change.add(op, adj.Delta); err != nil {
			return nil, err
		}
	}
	return touched, nil
}

func (r *OrderRepository) Update(ctx context.Context, req repositories.OrderUpdateRequest) (domain.Order, error) {
	const op = "mongo.orders.update"

	var updated domain.Order
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var doc orderDocument
		if err := r.orders.FindOne(sessCtx, bson.M{"_id": req.Order.ID}).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repositories.NotFound(op, "order %s not found", req.Order.ID)
			}
			return err
		}
		if doc.Version != req.ExpectedVersion {
			return repositories.Conflict(op, "order %s version %d, expected %d", doc.ID, doc.Version, req.ExpectedVersion)
		}

		byID := make(map[string]*stockChange, len(req.Restock))
		changes := make([]*stockChange, 0, len(req.Restock))
		for _, adj := range req.Restock {
			change, ok := byID[adj.ProductID]
			if !ok {
				product, err := findProduct(sessCtx, r.products, adj.ProductID)
				if errors.Is(err, mongo.ErrNoDocuments) {
					// Deleted products have nothing to restock.
					continue
				}
				if err != nil {
					return err
				}
				change = &stockChange{original: product}
				byID[adj.ProductID] = change
				changes = append(changes, change)
			}
			if err := change.add(op, adj.Delta); err != nil {
				return err
			}
		}

		order := req.Order
		order.Version = doc.Version + 1
		order.OrderNumber = doc.OrderNumber
		order.CustomerID = doc.CustomerID
		order.CreatedAt = doc.CreatedAt

		if _, err := applyStock(sessCtx, r.products, op, changes, order.UpdatedAt); err != nil {
			return err
		}
		res, err := r.orders.ReplaceOne(sessCtx,
			bson.M{"_id": order.ID, "version": req.ExpectedVersion},
			newOrderDocument(order),
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return repositories.Conflict(op, "order %s changed concurrently", order.ID)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, mongodb.WrapError(op, err)
	}
	return updated, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, "mongo.orders.find", bson.M{"_id": orderID})
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.findOne(ctx, "mongo.orders.findByNumber", bson.M{"orderNumber": orderNumber})
}

func (r *OrderRepository) findOne(ctx context.Context, op string, filter bson.M) (domain.Order, error) {
	var doc orderDocument
	if err := r.orders.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.Order{}, mongodb.WrapError(op, err)
	}
	return doc.toDomain(), nil
}

// List matches vendor and item status independently across the items array, so an
// order qualifies when any item has the vendor and any item has the status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	const op = "mongo.orders.list"
	page := domain.Page[domain.Order]{Page: filter.Page, Limit: filter.Limit, Items: []domain.Order{}}
	if filter.Page < 1 || filter.Limit < 1 {
		return page, nil
	}

	query := bson.M{}
	if filter.CustomerID != "" {
		query["customerId"] = filter.CustomerID
	}
	if filter.VendorID != "" {
		query["vendorIds"] = filter.VendorID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.ItemStatus != "" {
		query["items.status"] = string(filter.ItemStatus)
	}
	if search := strings.TrimSpace(filter.NumberSearch); search != "" {
		query["orderNumber"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}

	total, err := r.orders.CountDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Order]{}, mongodb.WrapError(op, err)
	}
	page.Total = total

	cursor, err := r.orders.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "orderNumber", Value: -1}}).
		SetSkip(int64((filter.Page-1)*filter.Limit)).
		SetLimit(int64(filter.Limit)))
	if err != nil {
		return domain.Page[domain.Order]{}, mongodb.WrapError(op, err)
	}
	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return domain.Page[domain.Order]{}, mongodb.WrapError(op, err)
	}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.toDomain())
	}
	return page, nil
}

func (r *OrderRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.orders.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
