package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/repositories"
)

// stockChange accumulates the net delta for one product read inside a transaction.
type stockChange struct {
	original domain.Product
	delta    int
}

func (c *stockChange) add(op string, delta int) error {
	inv := c.original.Inventory
	if inv.TrackQuantity {
		available := inv.Quantity + c.delta
		if available+delta < 0 {
			return repositories.NewInsufficientStockError(op, c.original.ID, -delta, available)
		}
	}
	c.delta += delta
	return nil
}

// applyStock writes each net delta as a conditional $inc. Decrements only match while
// quantity >= n, so a concurrent reservation surfaces as insufficient stock instead of a
// negative count. Untracked products only get their updatedAt stamped.
func applyStock(ctx context.Context, products *mongo.Collection, op string, changes []*stockChange, at time.Time) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(changes))
	for _, change := range changes {
		product := change.original
		product.UpdatedAt = at.UTC()
		filter := bson.M{"_id": product.ID}
		update := bson.M{"$set": bson.M{"updatedAt": product.UpdatedAt}}
		if product.Inventory.TrackQuantity && change.delta != 0 {
			update["$inc"] = bson.M{"quantity": change.delta}
			if change.delta < 0 {
				filter["quantity"] = bson.M{"$gte": -change.delta}
			}
		}

		var doc productDocument
		err := products.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments) && change.delta < 0:
			return nil, repositories.NewInsufficientStockError(op, product.ID, -change.delta, 0)
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, repositories.NotFound(op, "product %s not found", product.ID)
		case err != nil:
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func findProduct(ctx context.Context, products *mongo.Collection, id string) (domain.Product, error) {
	var doc productDocument
	if err := products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(), nil
}
