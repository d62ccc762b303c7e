// Package accounts provisions a user's storefront state. Creating the user,
// their cart and their wallet is one explicit transactional step run when
// the identity provider commits a new account.
package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Provision is idempotent: existing rows are kept and only the profile
// fields of the user are refreshed.
func (r *Repository) Provision(ctx context.Context, user domain.User, initialBalance decimal.Decimal) error {
	return storage.InTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
		`, user.ID, user.Email, user.Name); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO carts (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
		`, user.ID); err != nil {
			return fmt.Errorf("create cart: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
		`, user.ID, initialBalance); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}

		return nil
	})
}
