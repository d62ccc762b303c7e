package orders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type OrderRepository struct {
	db storage.Querier
}

func NewOrderRepository(db storage.Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(q storage.Querier) *OrderRepository {
	return &OrderRepository{db: q}
}

// Create writes the order header and its item snapshots. Callers run it
// inside the checkout transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	s := order.Shipping
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, first_name, last_name, company, address, city, country,
			zipcode, mobile, email, order_note, payment_method, coupon_code,
			discount_percent, subtotal, total_amount, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
	`, order.ID, order.UserID, s.FirstName, s.LastName, s.Company, s.Address, s.City, s.Country,
		s.Zipcode, s.Mobile, s.Email, s.OrderNote, order.PaymentMethod, order.CouponCode,
		order.DiscountPercent, order.Subtotal, order.Total, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, item.ProductID, item.ProductName, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

const selectOrder = `
	SELECT id, user_id, first_name, last_name, company, address, city, country,
		zipcode, mobile, email, order_note, payment_method, coupon_code,
		discount_percent, subtotal, total_amount, status, created_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{Items: []domain.OrderItem{}}
	s := &o.Shipping
	err := row.Scan(&o.ID, &o.UserID, &s.FirstName, &s.LastName, &s.Company, &s.Address, &s.City, &s.Country,
		&s.Zipcode, &s.Mobile, &s.Email, &s.OrderNote, &o.PaymentMethod, &o.CouponCode,
		&o.DiscountPercent, &o.Subtotal, &o.Total, &o.Status, &o.CreatedAt)
	return o, err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

// GetForUser returns the order only when it belongs to userID.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, nil
	}
	return order, nil
}

// UpdateStatus moves the order to status when the transition is allowed. The
// update is conditional on the status read, so a concurrent change surfaces
// as an invalid transition instead of being overwritten.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	var current domain.OrderStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if !current.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current, status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, status, id, current)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: status changed concurrently", domain.ErrInvalidTransition)
	}

	return r.GetByID(ctx, id)
}

// ListByUser returns the user's orders newest first with items loaded in one
// extra query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+`
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}
