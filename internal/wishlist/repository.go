// Package wishlist keeps the products a user saved for later. Entries carry
// no quantity and never reserve stock.
package wishlist

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type Repository struct {
	db storage.Querier
}

func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

// List returns the user's wishlist, most recently added first.
func (r *Repository) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.added_at,
			p.id, p.category_id, p.name, p.description, p.price, p.stock
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC, p.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.WishlistItem{}
	for rows.Next() {
		var it domain.WishlistItem
		p := &it.Product
		if err := rows.Scan(&it.AddedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// Add saves the product for the user. Adding a product twice is a no-op; an
// unknown product is domain.ErrNotFound.
func (r *Repository) Add(ctx context.Context, userID string, productID int64) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO wishlist_items (user_id, product_id)
			SELECT $1::text, p.id FROM products p WHERE p.id = $2
			ON CONFLICT (user_id, product_id) DO NOTHING
		)
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $2)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, userID string, productID int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM wishlist_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
