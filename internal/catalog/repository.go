package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type ProductRepository struct {
	db storage.Querier
}

func NewProductRepository(db storage.Querier) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to q, typically a *sql.Tx.
func (r *ProductRepository) WithTx(q storage.Querier) *ProductRepository {
	return &ProductRepository{db: q}
}

func (r *ProductRepository) ListProducts(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, name, description, price, stock
		FROM products
		WHERE $1 = 0 OR category_id = $1
		ORDER BY id
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, name, description, price, stock
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// DecrementStock removes quantity units only if the product keeps a
// non-negative stock, in a single statement.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}
