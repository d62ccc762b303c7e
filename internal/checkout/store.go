package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/coupon"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/wallet"
)

// Tx is the set of operations checkout performs inside one transaction.
type Tx interface {
	// CartLines returns the user's cart ordered by product id with the cart,
	// item and product rows locked until the transaction ends.
	CartLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	ActiveCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	DebitWallet(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	ClearCart(ctx context.Context, userID string) error
	// FindAttempt returns the order id recorded for the key, or "".
	FindAttempt(ctx context.Context, userID, key string) (string, error)
	RecordAttempt(ctx context.Context, userID, key, orderID string) error
}

// Store runs fn atomically: every Tx effect is committed when fn returns nil
// and discarded otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type PostgresStore struct {
	db       *sql.DB
	products *catalog.ProductRepository
	carts    *cart.Repository
	wallets  *wallet.Repository
	coupons  *coupon.Repository
	orders   *orders.OrderRepository
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:       db,
		products: catalog.NewProductRepository(db),
		carts:    cart.NewRepository(db),
		wallets:  wallet.NewRepository(db),
		coupons:  coupon.NewRepository(db),
		orders:   orders.NewOrderRepository(db),
	}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return storage.InTx(ctx, s.db, opts, func(tx *sql.Tx) error {
		return fn(&postgresTx{
			tx:       tx,
			products: s.products.WithTx(tx),
			carts:    s.carts.WithTx(tx),
			wallets:  s.wallets.WithTx(tx),
			coupons:  s.coupons.WithTx(tx),
			orders:   s.orders.WithTx(tx),
		})
	})
}

type postgresTx struct {
	tx       *sql.Tx
	products *catalog.ProductRepository
	carts    *cart.Repository
	wallets  *wallet.Repository
	coupons  *coupon.Repository
	orders   *orders.OrderRepository
}

func (t *postgresTx) CartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return t.carts.Lines(ctx, userID, true)
}

func (t *postgresTx) ActiveCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	return t.coupons.Active(ctx, code)
}

func (t *postgresTx) DebitWallet(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return t.wallets.Debit(ctx, userID, amount)
}

func (t *postgresTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	return t.orders.Create(ctx, order)
}

func (t *postgresTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	err := t.products.DecrementStock(ctx, productID, quantity)
	if errors.Is(err, catalog.ErrInsufficientStock) {
		return &domain.OutOfStockError{ProductID: productID, Requested: quantity}
	}
	return err
}

func (t *postgresTx) ClearCart(ctx context.Context, userID string) error {
	return t.carts.Clear(ctx, userID)
}

func (t *postgresTx) FindAttempt(ctx context.Context, userID, key string) (string, error) {
	var orderID string
	err := t.tx.QueryRowContext(ctx, `
		SELECT order_id FROM checkout_attempts
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key).Scan(&orderID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find checkout attempt: %w", err)
	}
	return orderID, nil
}

func (t *postgresTx) RecordAttempt(ctx context.Context, userID, key, orderID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO checkout_attempts (user_id, idempotency_key, order_id)
		VALUES ($1, $2, $3)
	`, userID, key, orderID)
	if err != nil {
		return fmt.Errorf("record checkout attempt: %w", err)
	}
	return nil
}
