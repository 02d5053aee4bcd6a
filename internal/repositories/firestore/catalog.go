package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shopmart/api/internal/domain"
	pfirestore "github.com/shopmart/api/internal/platform/firestore"
	"github.com/shopmart/api/internal/repositories"
)

// CatalogRepository reads products and applies stock adjustments transactionally.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[domain.Product]
	clock    func() time.Time
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs the Firestore catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		products: newProductCollection(provider),
		clock:    time.Now,
	}, nil
}

func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	return r.products.Get(ctx, productID)
}

func (r *CatalogRepository) AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error) {
	const op = "firestore.catalog.adjust"
	var product domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, ref, found, err := pfirestore.TxGet(ctx, tx, r.products, productID)
		if err != nil {
			return err
		}
		if !found {
			return repositories.NotFound(op, "product %s not found", productID)
		}
		if err := applyDelta(op, &current, delta); err != nil {
			return err
		}
		current.UpdatedAt = r.clock().UTC()
		product = current
		return tx.Update(ref, inventoryUpdates(current))
	}, pfirestore.WithTxOperation(op))
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// inventoryUpdates touches only the stock fields; the rest of the product document belongs
// to the catalog owner.
func inventoryUpdates(product domain.Product) []firestore.Update {
	return []firestore.Update{
		{Path: "quantity", Value: product.Inventory.Quantity},
		{Path: "updatedAt", Value: product.UpdatedAt},
	}
}

// PutProduct writes a product document, replacing any existing one. Used for seeding.
func (r *CatalogRepository) PutProduct(ctx context.Context, product domain.Product) error {
	return r.products.Set(ctx, product.ID, product)
}
