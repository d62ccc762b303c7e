// Package coupon resolves discount codes and remembers the code a user
// applied to their cart for the rest of the session.
package coupon

import (
	"context"
	"database/sql"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type Repository struct {
	db storage.Querier
}

func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(q storage.Querier) *Repository {
	return &Repository{db: q}
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Active returns the coupon for code, or domain.ErrInvalidCoupon when it is
// unknown or inactive. Codes match case-insensitively.
func (r *Repository) Active(ctx context.Context, code string) (*domain.Coupon, error) {
	code = Normalize(code)
	if code == "" {
		return nil, domain.ErrInvalidCoupon
	}

	c := &domain.Coupon{}
	err := r.db.QueryRowContext(ctx, `
		SELECT code, discount_percent, active
		FROM coupons
		WHERE upper(code) = $1
	`, code).Scan(&c.Code, &c.DiscountPercent, &c.Active)
	if err == sql.ErrNoRows {
		return nil, domain.ErrInvalidCoupon
	}
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, domain.ErrInvalidCoupon
	}
	return c, nil
}
