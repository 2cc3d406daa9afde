package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

var errStoreDown = errors.New("store unavailable")

// Mock InventoryLedger
type mockLedger struct {
	mu       sync.Mutex
	products map[string]*domain.Product

	// beforeDecrement runs inside the lock, letting tests change stock between phases.
	beforeDecrement func(productID string)
	decrementErr    error
	incrementErr    error
	getErr          error
	decrements      []string
}

func newMockLedger() *mockLedger {
	return &mockLedger{products: make(map[string]*domain.Product)}
}

func (m *mockLedger) add(id, price string, available int) *mockLedger {
	m.products[id] = &domain.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Available: available}
	return m
}

func (m *mockLedger) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Available
}

func (m *mockLedger) setStock(id string, available int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Available = available
}

func (m *mockLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockLedger) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeDecrement != nil {
		m.beforeDecrement(productID)
	}
	if m.decrementErr != nil {
		return false, m.decrementErr
	}
	m.decrements = append(m.decrements, productID)

	p, ok := m.products[productID]
	if !ok || p.Available < quantity {
		return false, nil
	}
	p.Available -= quantity
	return true, nil
}

func (m *mockLedger) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.products[productID].Available += quantity
	return nil
}

// Mock CartStore
type mockCartStore struct {
	mu      sync.Mutex
	carts   map[string][]domain.CartLine
	saves   int
	getErr  error
	saveErr error
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string][]domain.CartLine)}
}

func (m *mockCartStore) put(userID string, lines ...domain.CartLine) {
	m.carts[userID] = lines
}

func (m *mockCartStore) lines(userID string) []domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[userID]
}

func (m *mockCartStore) GetCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return append([]domain.CartLine(nil), m.carts[userID]...), nil
}

func (m *mockCartStore) SaveCart(ctx context.Context, userID string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if len(lines) == 0 {
		delete(m.carts, userID)
		return nil
	}
	m.carts[userID] = append([]domain.CartLine(nil), lines...)
	return nil
}

// Mock OrderStore
type mockOrderStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: make(map[string]domain.Order)}
}

func (m *mockOrderStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *mockOrderStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.orders[orderID] = o
	return true, nil
}

func (m *mockOrderStore) SetPaymentReference(ctx context.Context, orderID, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.PaymentReference != "" {
		return false, nil
	}
	o.PaymentReference = reference
	m.orders[orderID] = o
	return true, nil
}

// Mock IdempotencyStore
type mockIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (p *recordingPublisher) Enqueue(order domain.Order) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order)
	return true
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}
