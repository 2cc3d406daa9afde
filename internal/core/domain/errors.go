package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrPersistence       = errors.New("persistence failure")
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrInvalidInput      = errors.New("invalid input")
)

// StockConflict describes one line that cannot be satisfied.
type StockConflict struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockError carries every conflicting line so a client can resolve them in one round trip.
type StockError struct {
	Conflicts []StockConflict
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", c.ProductID, c.Requested, c.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PersistenceError marks a transient store failure; the whole operation is safe to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
