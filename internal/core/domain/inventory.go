package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as seen by the inventory ledger.
type Product struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Available int             `db:"available" json:"available"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

func (p Product) InStock(quantity int) bool {
	return p.Available >= quantity
}
