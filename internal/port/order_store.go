package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderStore interface {
	// CreateOrder persists the order and its lines in one transaction
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order with its lines, or domain.ErrNotFound
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns the user's orders, newest first
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)

	// UpdateStatus moves the order from one status to another, returns false if the current status differs
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)

	// SetPaymentReference stores the reference only if none is set yet, returns false otherwise
	SetPaymentReference(ctx context.Context, orderID, reference string) (bool, error)
}
