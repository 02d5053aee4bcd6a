package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/mongodb"
	"github.com/shopmart/api/internal/repositories"
)

// CatalogRepository reads products and adjusts their stock.
type CatalogRepository struct {
	client   *mongodb.Client
	products *mongo.Collection
	clock    func() time.Time
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs the MongoDB catalog repository.
func NewCatalogRepository(client *mongodb.Client) (*CatalogRepository, error) {
	if client == nil {
		return nil, errors.New("catalog repository requires mongodb client")
	}
	return &CatalogRepository{
		client:   client,
		products: client.Database().Collection(productsCollection),
		clock:    time.Now,
	}, nil
}

func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := findProduct(ctx, r.products, productID)
	if err != nil {
		return domain.Product{}, mongodb.WrapError("mongo.catalog.find", err)
	}
	return product, nil
}

func (r *CatalogRepository) AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error) {
	const op = "mongo.catalog.adjust"
	var product domain.Product
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := findProduct(sessCtx, r.products, productID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repositories.NotFound(op, "product %s not found", productID)
			}
			return err
		}
		change := &stockChange{original: current}
		if err := change.add(op, delta); err != nil {
			return err
		}
		updated, err := applyStock(sessCtx, r.products, op, []*stockChange{change}, r.clock())
		if err != nil {
			return err
		}
		product = updated[0]
		return nil
	})
	if err != nil {
		return domain.Product{}, mongodb.WrapError(op, err)
	}
	return product, nil
}

// PutProduct upserts a product document. Used for seeding.
func (r *CatalogRepository) PutProduct(ctx context.Context, product domain.Product) error {
	_, err := r.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, newProductDocument(product), options.Replace().SetUpsert(true))
	return mongodb.WrapError("mongo.catalog.put", err)
}
