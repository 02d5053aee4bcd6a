// Package mongo implements the repository interfaces on MongoDB. Multi-document
// operations require a replica set so that session transactions are available.
package mongo

import (
	"context"
	"errors"

	"github.com/shopmart/api/internal/platform/mongodb"
	"github.com/shopmart/api/internal/repositories"
)

// Registry bundles the MongoDB repositories behind one client.
type Registry struct {
	client  *mongodb.Client
	orders  *OrderRepository
	catalog *CatalogRepository
	vendors *VendorRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry ensures indexes and wires every repository to the shared client.
func NewRegistry(ctx context.Context, client *mongodb.Client) (*Registry, error) {
	if client == nil {
		return nil, errors.New("mongo registry requires client")
	}
	if err := EnsureIndexes(ctx, client.Database()); err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(client)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(client)
	if err != nil {
		return nil, err
	}
	vendors, err := NewVendorRepository(client)
	if err != nil {
		return nil, err
	}
	return &Registry{client: client, orders: orders, catalog: catalog, vendors: vendors}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Vendors() repositories.VendorRepository { return r.vendors }

// CatalogStore exposes the concrete catalog repository for seeding.
func (r *Registry) CatalogStore() *CatalogRepository { return r.catalog }

// VendorStore exposes the concrete vendor repository for seeding.
func (r *Registry) VendorStore() *VendorRepository { return r.vendors }

func (r *Registry) Ping(ctx context.Context) error { return r.client.Ping(ctx) }

func (r *Registry) Close(ctx context.Context) error { return r.client.Close(ctx) }
