package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// WishlistItem is a product a user saved for later, with its live data.
type WishlistItem struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"added_at"`
}
