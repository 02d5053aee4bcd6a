package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopmart/api/internal/repositories"
)

const eventInventoryAdjusted = "inventory.adjusted"

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Catalog repositories.CatalogRepository
	Metrics OrderMetrics
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	catalog repositories.CatalogRepository
	metrics OrderMetrics
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("inventory service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopOrderMetrics{}
	}

	return &inventoryService{
		catalog: deps.Catalog,
		metrics: metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// AdjustInventory applies a manual stock correction. Untracked products accept any delta.
func (s *inventoryService) AdjustInventory(ctx context.Context, cmd AdjustInventoryCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	var fields []FieldError
	if productID == "" {
		fields = append(fields, FieldError{Field: "productId", Message: "Product ID is required"})
	}
	if cmd.Delta == 0 {
		fields = append(fields, FieldError{Field: "delta", Message: "Delta must not be zero"})
	}
	if len(fields) > 0 {
		return Product{}, &ValidationError{Fields: fields}
	}

	product, err := s.catalog.AdjustInventory(ctx, productID, cmd.Delta)
	if err != nil {
		return Product{}, mapRepositoryError(err, ErrProductNotFound)
	}

	s.logger(ctx, eventInventoryAdjusted, map[string]any{
		"productId": product.ID,
		"delta":     cmd.Delta,
		"quantity":  product.Inventory.Quantity,
		"actorId":   strings.TrimSpace(cmd.ActorID),
		"reason":    strings.TrimSpace(cmd.Reason),
		"at":        s.clock().Format(time.RFC3339),
	})
	if product.LowStock() {
		s.metrics.LowStock(product.ID)
	}
	return product, nil
}
