package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CartService manages per-user carts. Stock checks here are advisory; the
// authoritative decision is made when the checkout reserves stock.
type CartService struct {
	carts     port.CartStore
	inventory port.InventoryLedger
	logger    *zap.Logger
}

func NewCartService(carts port.CartStore, inventory port.InventoryLedger, logger *zap.Logger) *CartService {
	return &CartService{
		carts:     carts,
		inventory: inventory,
		logger:    logger.Named("cart"),
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	lines, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("load cart", err)
	}
	return domain.NewCart(userID, lines), nil
}

// AddLine inserts a line or increases an existing one. The prospective
// quantity must not exceed the currently available stock.
func (s *CartService) AddLine(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := getProduct(ctx, s.inventory, productID)
	if err != nil {
		return nil, err
	}

	existing, _ := cart.Line(productID)
	prospective := existing.Quantity + quantity
	if !product.InStock(prospective) {
		return nil, &domain.StockError{Conflicts: []domain.StockConflict{{
			ProductID: productID,
			Requested: prospective,
			Available: product.Available,
		}}}
	}

	cart.Set(productID, prospective)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) UpdateLine(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart.Line(productID); !ok {
		return nil, fmt.Errorf("cart line %s: %w", productID, domain.ErrNotFound)
	}

	product, err := getProduct(ctx, s.inventory, productID)
	if err != nil {
		return nil, err
	}
	if !product.InStock(quantity) {
		return nil, &domain.StockError{Conflicts: []domain.StockConflict{{
			ProductID: productID,
			Requested: quantity,
			Available: product.Available,
		}}}
	}

	cart.Set(productID, quantity)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemoveLine(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cart.Remove(productID) {
		return nil, fmt.Errorf("cart line %s: %w", productID, domain.ErrNotFound)
	}
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveLines ignores product ids that are not in the cart.
func (s *CartService) RemoveLines(ctx context.Context, userID string, productIDs []string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := false
	for _, id := range productIDs {
		if cart.Remove(id) {
			changed = true
		}
	}
	if changed {
		if err := s.save(ctx, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.SaveCart(ctx, userID, nil); err != nil {
		return domain.NewPersistenceError("clear cart", err)
	}
	return nil
}

// Reconcile drops lines whose product is gone or out of stock and clamps
// lines that exceed the available quantity.
func (s *CartService) Reconcile(ctx context.Context, userID string) ([]domain.Adjustment, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, nil
	}

	products, err := loadProducts(ctx, s.inventory, productIDs(cart.Lines))
	if err != nil {
		return nil, err
	}

	var adjustments []domain.Adjustment
	for _, line := range append([]domain.CartLine(nil), cart.Lines...) {
		p, ok := products[line.ProductID]
		switch {
		case !ok || p.Available == 0:
			cart.Remove(line.ProductID)
			adjustments = append(adjustments, domain.Adjustment{
				ProductID: line.ProductID,
				Kind:      domain.AdjustmentRemoved,
				Previous:  line.Quantity,
				Current:   0,
			})
		case p.Available < line.Quantity:
			cart.Set(line.ProductID, p.Available)
			adjustments = append(adjustments, domain.Adjustment{
				ProductID: line.ProductID,
				Kind:      domain.AdjustmentClamped,
				Previous:  line.Quantity,
				Current:   p.Available,
			})
		}
	}

	if len(adjustments) == 0 {
		return nil, nil
	}
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Info("cart reconciled",
		zap.String("user_id", userID),
		zap.Int("adjustments", len(adjustments)),
	)
	return adjustments, nil
}

// Summarize is always computed from the stored lines and the current catalog.
func (s *CartService) Summarize(ctx context.Context, userID string) (*domain.CartSummary, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &domain.CartSummary{
		LineCount:   len(cart.Lines),
		TotalAmount: decimal.Zero,
		Lines:       make([]domain.SummaryLine, 0, len(cart.Lines)),
	}
	if cart.IsEmpty() {
		return summary, nil
	}

	products, err := loadProducts(ctx, s.inventory, productIDs(cart.Lines))
	if err != nil {
		return nil, err
	}

	for _, line := range cart.Lines {
		summary.TotalQuantity += line.Quantity
		sl := domain.SummaryLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: decimal.Zero, Amount: decimal.Zero}

		p, ok := products[line.ProductID]
		if !ok {
			summary.HasUnavailableItems = true
			summary.Lines = append(summary.Lines, sl)
			continue
		}

		sl.UnitPrice = p.Price
		sl.Available = p.Available
		sl.Amount = p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		summary.TotalAmount = summary.TotalAmount.Add(sl.Amount)
		if !p.InStock(line.Quantity) {
			summary.HasUnavailableItems = true
		}
		summary.Lines = append(summary.Lines, sl)
	}

	return summary, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	if err := s.carts.SaveCart(ctx, cart.UserID, cart.Lines); err != nil {
		return domain.NewPersistenceError("save cart", err)
	}
	return nil
}
