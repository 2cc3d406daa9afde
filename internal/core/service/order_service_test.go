package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

func seedOrder(store *mockOrderStore, id, userID string, status domain.OrderStatus, created time.Time) {
	store.orders[id] = domain.Order{ID: id, UserID: userID, Status: status, CreatedAt: created, UpdatedAt: created}
}

func TestOrderService_GetOrderHidesOtherUsers(t *testing.T) {
	store := newMockOrderStore()
	seedOrder(store, "o1", "alice", domain.OrderStatusPending, time.Now())
	svc := NewOrderService(store, zap.NewNop())

	order, err := svc.GetOrder(context.Background(), "alice", "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)

	_, err = svc.GetOrder(context.Background(), "bob", "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetOrder(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderService_ListOrdersNewestFirst(t *testing.T) {
	store := newMockOrderStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(store, "old", "alice", domain.OrderStatusPending, base)
	seedOrder(store, "new", "alice", domain.OrderStatusPending, base.Add(time.Hour))
	seedOrder(store, "other", "bob", domain.OrderStatusPending, base)
	svc := NewOrderService(store, zap.NewNop())

	orders, err := svc.ListOrders(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "new", orders[0].ID)
	assert.Equal(t, "old", orders[1].ID)
}

func TestOrderService_AdvanceStatus(t *testing.T) {
	store := newMockOrderStore()
	seedOrder(store, "o1", "alice", domain.OrderStatusPending, time.Now())
	svc := NewOrderService(store, zap.NewNop())

	order, err := svc.AdvanceStatus(context.Background(), "o1", domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)

	_, err = svc.AdvanceStatus(context.Background(), "o1", domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.AdvanceStatus(context.Background(), "o1", domain.OrderStatusCancelled)
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), "o1", domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.AdvanceStatus(context.Background(), "missing", domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type racingOrderStore struct {
	*mockOrderStore
}

func (r racingOrderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	return false, nil
}

func TestOrderService_AdvanceStatusLostUpdate(t *testing.T) {
	store := newMockOrderStore()
	seedOrder(store, "o1", "alice", domain.OrderStatusPending, time.Now())
	svc := NewOrderService(racingOrderStore{store}, zap.NewNop())

	_, err := svc.AdvanceStatus(context.Background(), "o1", domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrderService_AttachPaymentReference(t *testing.T) {
	store := newMockOrderStore()
	seedOrder(store, "o1", "alice", domain.OrderStatusPending, time.Now())
	seedOrder(store, "o2", "alice", domain.OrderStatusCancelled, time.Now())
	svc := NewOrderService(store, zap.NewNop())

	_, err := svc.AttachPaymentReference(context.Background(), "o1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	order, err := svc.AttachPaymentReference(context.Background(), "o1", " pay_123 ")
	require.NoError(t, err)
	assert.Equal(t, "pay_123", order.PaymentReference)

	_, err = svc.AttachPaymentReference(context.Background(), "o1", "pay_456")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.AttachPaymentReference(context.Background(), "o2", "pay_789")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
