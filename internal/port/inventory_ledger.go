package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type InventoryLedger interface {
	// GetProduct returns current price and available quantity, or domain.ErrNotFound
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock atomically decreases stock, returns false without mutation if insufficient
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores stock (compensation only)
	IncrementStock(ctx context.Context, productID string, quantity int) error
}
