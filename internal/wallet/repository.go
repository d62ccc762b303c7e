// Package wallet is the per-user balance ledger. Debits are a single
// compare-and-decrement statement, so the balance can never go negative even
// under concurrent checkouts.
package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

var ErrInvalidAmount = errors.New("amount must be positive")

type Repository struct {
	db storage.Querier
}

func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(q storage.Querier) *Repository {
	return &Repository{db: q}
}

// Debit subtracts amount and returns the new balance.
func (r *Repository) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, err
	}

	if _, err := r.Balance(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, domain.ErrInsufficientFunds
}

func (r *Repository) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT balance FROM wallets WHERE user_id = $1
	`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, domain.ErrNotFound
	}
	return balance, err
}
