package cart

import (
	"context"
	"database/sql"
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

func (r *Repository) WithTx(q storage.Querier) *Repository {
	return &Repository{db: q}
}

// GetOrCreate returns the id of the user's cart, creating it on first use.
func (r *Repository) GetOrCreate(ctx context.Context, userID string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, userID).Scan(&id)
	return id, err
}

// AddItem inserts the product or increments an existing line, in one
// statement, only when the resulting quantity fits the current stock.
func (r *Repository) AddItem(ctx context.Context, cartID, productID int64, quantity int) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		SELECT $1::bigint, p.id, $3::integer
		FROM products p
		WHERE p.id = $2 AND p.stock >= $3
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= (
			SELECT stock FROM products WHERE id = EXCLUDED.product_id
		)
		RETURNING id
	`, cartID, productID, quantity).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotEnoughStock
	}
	return id, err
}

// UpdateQuantity applies delta to the line, never going below one. Increases
// that would exceed stock leave the line untouched.
func (r *Repository) UpdateQuantity(ctx context.Context, userID string, itemID int64, delta int) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx, `
		UPDATE cart_items ci
		SET quantity = GREATEST(1, ci.quantity + $3)
		FROM carts c, products p
		WHERE ci.id = $1
			AND ci.cart_id = c.id
			AND c.user_id = $2
			AND p.id = ci.product_id
			AND ($3 <= 0 OR ci.quantity + $3 <= p.stock)
		RETURNING ci.quantity
	`, itemID, userID, delta).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	exists, err := r.itemExists(ctx, userID, itemID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	return 0, domain.ErrNotEnoughStock
}

func (r *Repository) RemoveItem(ctx context.Context, userID string, itemID int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.id = $1 AND ci.cart_id = c.id AND c.user_id = $2
	`, itemID, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Lines returns the user's cart joined with live product data, ordered by
// product id. With lock set the cart row is locked first, then the item and
// product rows in product id order. A second checkout of the same cart waits
// on the cart row and reads the items only after the first one committed.
func (r *Repository) Lines(ctx context.Context, userID string, lock bool) ([]domain.CartLine, error) {
	if lock {
		if err := r.lockCart(ctx, userID); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT ci.id, ci.cart_id, ci.quantity,
			p.id, p.category_id, p.name, p.description, p.price, p.stock
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY p.id`
	if lock {
		query += "\n\t\tFOR UPDATE OF ci, p"
	}

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		p := &l.Product
		if err := rows.Scan(&l.ItemID, &l.CartID, &l.Quantity,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

// Clear empties the user's cart. The cart row itself is kept.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1
	`, userID)
	return err
}

func (r *Repository) lockCart(ctx context.Context, userID string) error {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

func (r *Repository) itemExists(ctx context.Context, userID string, itemID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM cart_items ci
			JOIN carts c ON c.id = ci.cart_id
			WHERE ci.id = $1 AND c.user_id = $2
		)
	`, itemID, userID).Scan(&exists)
	return exists, err
}
