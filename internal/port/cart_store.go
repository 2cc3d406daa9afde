package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CartStore interface {
	// GetCart returns the user's lines; a user without a cart gets an empty slice
	GetCart(ctx context.Context, userID string) ([]domain.CartLine, error)

	// SaveCart replaces the user's lines; saving no lines removes the cart
	SaveCart(ctx context.Context, userID string, lines []domain.CartLine) error
}
