package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart exclusively owns its lines. A user without a stored cart has an empty one.
type Cart struct {
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

func NewCart(userID string, lines []CartLine) *Cart {
	c := &Cart{UserID: userID}
	for _, l := range lines {
		if l.Quantity > 0 {
			c.Lines = append(c.Lines, l)
		}
	}
	c.sort()
	return c
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Line(productID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Set stores quantity for productID, inserting the line when absent.
// A quantity below one removes the line.
func (c *Cart) Set(productID string, quantity int) {
	if quantity < 1 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: quantity})
	c.sort()
}

func (c *Cart) Remove(productID string) bool {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c *Cart) sort() {
	sort.Slice(c.Lines, func(i, j int) bool {
		return c.Lines[i].ProductID < c.Lines[j].ProductID
	})
}

type AdjustmentKind string

const (
	AdjustmentRemoved AdjustmentKind = "removed"
	AdjustmentClamped AdjustmentKind = "clamped"
)

// Adjustment records a change Reconcile made to a cart line.
type Adjustment struct {
	ProductID string         `json:"product_id"`
	Kind      AdjustmentKind `json:"kind"`
	Previous  int            `json:"previous"`
	Current   int            `json:"current"`
}

type SummaryLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Available int             `json:"available"`
	Amount    decimal.Decimal `json:"amount"`
}

type CartSummary struct {
	LineCount           int             `json:"line_count"`
	TotalQuantity       int             `json:"total_quantity"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	HasUnavailableItems bool            `json:"has_unavailable_items"`
	Lines               []SummaryLine   `json:"lines"`
}
