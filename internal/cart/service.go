// Package cart manages the per-user shopping cart. Every mutation is a single
// SQL statement, so concurrent edits of the same cart resolve as
// last-write-wins without lost deletes.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type itemStore interface {
	GetOrCreate(ctx context.Context, userID string) (int64, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int) (int64, error)
	UpdateQuantity(ctx context.Context, userID string, itemID int64, delta int) (int, error)
	RemoveItem(ctx context.Context, userID string, itemID int64) error
	Lines(ctx context.Context, userID string, lock bool) ([]domain.CartLine, error)
}

type productLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Line struct {
	ItemID    int64           `json:"item_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
	Total     decimal.Decimal `json:"total"`
}

type View struct {
	Items     []Line          `json:"items"`
	CartTotal decimal.Decimal `json:"cart_total"`
	CartCount int             `json:"cart_count"`
}

type Service struct {
	items    itemStore
	products productLookup
	logger   *slog.Logger
}

func NewService(items itemStore, products productLookup, logger *slog.Logger) *Service {
	return &Service{
		items:    items,
		products: products,
		logger:   logger,
	}
}

func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (int64, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return 0, domain.ErrNotFound
	}
	if product.Stock < quantity {
		return 0, domain.ErrNotEnoughStock
	}

	cartID, err := s.items.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get cart: %w", err)
	}

	itemID, err := s.items.AddItem(ctx, cartID, productID, quantity)
	if err != nil {
		return 0, err
	}

	s.logger.Info("cart item added", "user_id", userID, "product_id", productID, "quantity", quantity)
	return itemID, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, itemID int64, delta int) (int, error) {
	quantity, err := s.items.UpdateQuantity(ctx, userID, itemID, delta)
	if err != nil {
		return 0, err
	}

	s.logger.Info("cart item updated", "user_id", userID, "item_id", itemID, "quantity", quantity)
	return quantity, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, itemID int64) error {
	if err := s.items.RemoveItem(ctx, userID, itemID); err != nil {
		return err
	}

	s.logger.Info("cart item removed", "user_id", userID, "item_id", itemID)
	return nil
}

// Lines exposes the raw cart lines for pricing previews.
func (s *Service) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.items.Lines(ctx, userID, false)
}

func (s *Service) View(ctx context.Context, userID string) (View, error) {
	lines, err := s.items.Lines(ctx, userID, false)
	if err != nil {
		return View{}, err
	}
	return NewView(lines), nil
}

func NewView(lines []domain.CartLine) View {
	v := View{
		Items:     make([]Line, 0, len(lines)),
		CartTotal: pricing.CartTotal(lines),
	}
	for _, l := range lines {
		v.Items = append(v.Items, Line{
			ItemID:    l.ItemID,
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Stock:     l.Product.Stock,
			Total:     pricing.LineTotal(l.Product.Price, l.Quantity),
		})
		v.CartCount += l.Quantity
	}
	return v
}
