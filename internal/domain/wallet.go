package domain

import "github.com/shopspring/decimal"

type Wallet struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type Coupon struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
	Active          bool   `json:"active"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

const RoleAdmin = "admin"
