// Package firestore implements the repository interfaces on Cloud Firestore.
package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/shopmart/api/internal/platform/firestore"
	"github.com/shopmart/api/internal/repositories"
)

// Registry bundles the Firestore repositories behind one provider.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	catalog  *CatalogRepository
	vendors  *VendorRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository to the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	vendors, err := NewVendorRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, orders: orders, catalog: catalog, vendors: vendors}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Vendors() repositories.VendorRepository { return r.vendors }

// CatalogStore exposes the concrete catalog repository for seeding.
func (r *Registry) CatalogStore() *CatalogRepository { return r.catalog }

// VendorStore exposes the concrete vendor repository for seeding.
func (r *Registry) VendorStore() *VendorRepository { return r.vendors }

func (r *Registry) Ping(ctx context.Context) error { return r.provider.Ping(ctx) }

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }
