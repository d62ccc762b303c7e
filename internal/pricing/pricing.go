// Package pricing computes cart and order totals. All arithmetic is exact
// decimal; only the discounted total is rounded, half-up to two places.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type Quote struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	DiscountPercent int             `json:"discount_percent"`
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

func CartTotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line.Product.Price, line.Quantity))
	}
	return total
}

// ApplyDiscount returns total × (1 − percent/100) rounded half-up to cents.
func ApplyDiscount(total decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return total
	}
	if percent > 100 {
		percent = 100
	}
	return total.Mul(hundred.Sub(decimal.NewFromInt(int64(percent)))).Div(hundred).Round(2)
}

// Price quotes the lines with an optional coupon. A nil coupon prices the cart
// without discount.
func Price(lines []domain.CartLine, coupon *domain.Coupon) Quote {
	subtotal := CartTotal(lines)
	q := Quote{
		Subtotal: subtotal,
		Discount: decimal.Zero,
		Total:    subtotal,
	}
	if coupon == nil || !coupon.Active {
		return q
	}

	q.Total = ApplyDiscount(subtotal, coupon.DiscountPercent)
	q.Discount = subtotal.Sub(q.Total)
	q.CouponCode = coupon.Code
	q.DiscountPercent = coupon.DiscountPercent
	return q
}
