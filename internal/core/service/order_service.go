package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// OrderService exposes committed orders. Orders are never deleted; only the
// status and the payment reference change after creation.
type OrderService struct {
	orders port.OrderStore
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(orders port.OrderStore, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		logger: logger.Named("orders"),
		now:    time.Now,
	}
}

// GetOrder hides orders owned by other users behind ErrNotFound.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}
	return orders, nil
}

func (s *OrderService) AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrInvalidTransition)
	}

	ok, err := s.orders.UpdateStatus(ctx, orderID, order.Status, next)
	if err != nil {
		return nil, domain.NewPersistenceError("update order status", err)
	}
	if !ok {
		return nil, fmt.Errorf("order %s changed concurrently: %w", orderID, domain.ErrInvalidTransition)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)

	order.Status = next
	order.UpdatedAt = s.now().UTC()
	return order, nil
}

// AttachPaymentReference records the external payment id once.
func (s *OrderService) AttachPaymentReference(ctx context.Context, orderID, reference string) (*domain.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("payment reference is required: %w", domain.ErrInvalidInput)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("order %s is cancelled: %w", orderID, domain.ErrInvalidState)
	}
	if order.PaymentReference != "" {
		return nil, fmt.Errorf("order %s already has a payment reference: %w", orderID, domain.ErrInvalidState)
	}

	ok, err := s.orders.SetPaymentReference(ctx, orderID, reference)
	if err != nil {
		return nil, domain.NewPersistenceError("set payment reference", err)
	}
	if !ok {
		return nil, fmt.Errorf("order %s already has a payment reference: %w", orderID, domain.ErrInvalidState)
	}

	order.PaymentReference = reference
	order.UpdatedAt = s.now().UTC()
	return order, nil
}

func (s *OrderService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get order", err)
	}
	return order, nil
}
