package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/storefront/internal/core/domain"
)

const orderColumns = "id, number, user_id, total_amount, status, shipping_address, payment_reference, created_at, updated_at"

type orderItemRow struct {
	OrderID string `db:"order_id"`
	domain.OrderLine
}

// MySQLOrderStore persists orders and their lines. Orders are append-only
// except for status and payment reference.
type MySQLOrderStore struct {
	db *sqlx.DB
}

func NewMySQLOrderStore(db *sqlx.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

func (m *MySQLOrderStore) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :number, :user_id, :total_amount, :status, :shipping_address, :payment_reference, :created_at, :updated_at)`,
		order,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)`,
			order.ID, line.ProductID, line.Quantity, line.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", line.ProductID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLOrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := m.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	err = m.db.SelectContext(ctx, &order.Lines, `
		SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = ?
		ORDER BY product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	return &order, nil
}

func (m *MySQLOrderStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := m.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	query, args, err := sqlx.In(`
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id IN (?)
		ORDER BY order_id, product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build order items query: %w", err)
	}

	var items []orderItemRow
	if err := m.db.SelectContext(ctx, &items, m.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}

	byOrder := make(map[string][]domain.OrderLine, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it.OrderLine)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

// UpdateStatus only applies when the stored status still equals from.
func (m *MySQLOrderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = NOW(6)
		WHERE id = ? AND status = ?`,
		to, orderID, from,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLOrderStore) SetPaymentReference(ctx context.Context, orderID, reference string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_reference = ?, updated_at = NOW(6)
		WHERE id = ? AND payment_reference = '' AND status <> ?`,
		reference, orderID, domain.OrderStatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("set payment reference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set payment reference: %w", err)
	}
	return rows == 1, nil
}
