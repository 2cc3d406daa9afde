package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewCart_DropsNonPositiveLines(t *testing.T) {
	c := NewCart("u1", []CartLine{{ProductID: "b", Quantity: 2}, {ProductID: "a", Quantity: 0}, {ProductID: "c", Quantity: 1}})

	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if c.Lines[0].ProductID != "b" || c.Lines[1].ProductID != "c" {
		t.Errorf("expected lines sorted by product id, got %+v", c.Lines)
	}
}

func TestCart_SetMergesIntoSingleLine(t *testing.T) {
	c := NewCart("u1", nil)

	c.Set("p", 2)
	c.Set("p", 3)

	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", c.Lines[0].Quantity)
	}
}

func TestCart_SetZeroRemoves(t *testing.T) {
	c := NewCart("u1", []CartLine{{ProductID: "p", Quantity: 1}})

	c.Set("p", 0)

	if !c.IsEmpty() {
		t.Errorf("expected empty cart, got %+v", c.Lines)
	}
}

func TestCart_Remove(t *testing.T) {
	c := NewCart("u1", []CartLine{{ProductID: "p", Quantity: 1}})

	if c.Remove("missing") {
		t.Error("expected false for missing line")
	}
	if !c.Remove("p") {
		t.Error("expected true for existing line")
	}
}

func TestStockError_MatchesSentinel(t *testing.T) {
	var err error = &StockError{Conflicts: []StockConflict{{ProductID: "p", Requested: 3, Available: 2}}}
	wrapped := fmt.Errorf("checkout: %w", err)

	if !errors.Is(wrapped, ErrInsufficientStock) {
		t.Error("expected StockError to match ErrInsufficientStock")
	}

	var stockErr *StockError
	if !errors.As(wrapped, &stockErr) {
		t.Fatal("expected errors.As to find StockError")
	}
	if stockErr.Conflicts[0].Available != 2 {
		t.Errorf("expected available 2, got %d", stockErr.Conflicts[0].Available)
	}
}

func TestPersistenceError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPersistenceError("create order", cause)

	if !errors.Is(err, ErrPersistence) {
		t.Error("expected match on ErrPersistence")
	}
	if !errors.Is(err, cause) {
		t.Error("expected match on cause")
	}
}
