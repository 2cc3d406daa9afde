package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/storefront/internal/core/domain"
)

const productColumns = "id, name, price, available, updated_at"

// MySQLInventory keeps stock in the products table. Reservations are a single
// conditional UPDATE so InnoDB's row lock serializes competing buyers.
type MySQLInventory struct {
	db *sqlx.DB
}

func NewMySQLInventory(db *sqlx.DB) *MySQLInventory {
	return &MySQLInventory{db: db}
}

func (m *MySQLInventory) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLInventory) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET available = available - ?, updated_at = NOW(6)
		WHERE id = ? AND available >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLInventory) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET available = available + ?, updated_at = NOW(6)
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("increment stock %s: %w", productID, domain.ErrNotFound)
	}
	return nil
}

// UpsertProduct creates a product or overwrites its name, price and stock.
func (m *MySQLInventory) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO products (id, name, price, available, updated_at)
		VALUES (:id, :name, :price, :available, NOW(6))
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			price = VALUES(price),
			available = VALUES(available),
			updated_at = NOW(6)`, p)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
