package domain

import "github.com/shopspring/decimal"

type Cart struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
}

type CartItem struct {
	ID        int64 `json:"id"`
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartLine is a cart item joined with the live product it refers to.
type CartLine struct {
	ItemID   int64   `json:"item_id"`
	CartID   int64   `json:"cart_id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (l CartLine) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
