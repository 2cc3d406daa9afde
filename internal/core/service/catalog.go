package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const maxConcurrentLookups = 8

// CatalogService serves read-only product lookups.
type CatalogService struct {
	inventory port.InventoryLedger
}

func NewCatalogService(inventory port.InventoryLedger) *CatalogService {
	return &CatalogService{inventory: inventory}
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return getProduct(ctx, s.inventory, productID)
}

// loadProducts reads every product concurrently. Unknown ids are absent from the result.
func loadProducts(ctx context.Context, inventory port.InventoryLedger, productIDs []string) (map[string]*domain.Product, error) {
	products := make(map[string]*domain.Product, len(productIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for _, id := range productIDs {
		g.Go(func() error {
			p, err := inventory.GetProduct(gctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return domain.NewPersistenceError("get product "+id, err)
			}
			mu.Lock()
			products[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func getProduct(ctx context.Context, inventory port.InventoryLedger, productID string) (*domain.Product, error) {
	p, err := inventory.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get product "+productID, err)
	}
	return p, nil
}

func productIDs(lines []domain.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
