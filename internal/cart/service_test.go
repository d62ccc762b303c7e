package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type memoryCart struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	carts    map[string]int64
	items    map[int64]*domain.CartItem
	nextID   int64
}

func newMemoryCart(products ...domain.Product) *memoryCart {
	m := &memoryCart{
		products: map[int64]*domain.Product{},
		carts:    map[string]int64{},
		items:    map[int64]*domain.CartItem{},
	}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *memoryCart) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memoryCart) GetOrCreate(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.carts[userID]; ok {
		return id, nil
	}
	m.nextID++
	m.carts[userID] = m.nextID
	return m.nextID, nil
}

func (m *memoryCart) AddItem(_ context.Context, cartID, productID int64, quantity int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock := m.products[productID].Stock
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			if it.Quantity+quantity > stock {
				return 0, domain.ErrNotEnoughStock
			}
			it.Quantity += quantity
			return it.ID, nil
		}
	}
	if quantity > stock {
		return 0, domain.ErrNotEnoughStock
	}
	m.nextID++
	m.items[m.nextID] = &domain.CartItem{ID: m.nextID, CartID: cartID, ProductID: productID, Quantity: quantity}
	return m.nextID, nil
}

func (m *memoryCart) owned(userID string, itemID int64) (*domain.CartItem, bool) {
	it, ok := m.items[itemID]
	if !ok || m.carts[userID] != it.CartID {
		return nil, false
	}
	return it, true
}

func (m *memoryCart) UpdateQuantity(_ context.Context, userID string, itemID int64, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.owned(userID, itemID)
	if !ok {
		return 0, domain.ErrNotFound
	}
	if delta > 0 && it.Quantity+delta > m.products[it.ProductID].Stock {
		return 0, domain.ErrNotEnoughStock
	}
	it.Quantity = max(1, it.Quantity+delta)
	return it.Quantity, nil
}

func (m *memoryCart) RemoveItem(_ context.Context, userID string, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(userID, itemID); !ok {
		return domain.ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *memoryCart) Lines(_ context.Context, userID string, _ bool) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := []domain.CartLine{}
	cartID, ok := m.carts[userID]
	if !ok {
		return lines, nil
	}
	for _, it := range m.items {
		if it.CartID == cartID {
			lines = append(lines, domain.CartLine{ItemID: it.ID, CartID: cartID, Product: *m.products[it.ProductID], Quantity: it.Quantity})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Product.ID < lines[j].Product.ID })
	return lines, nil
}

func testProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Grapes", Price: decimal.RequireFromString("4.99"), Stock: 5},
		{ID: 2, Name: "Oranges", Price: decimal.RequireFromString("3.50"), Stock: 1},
		{ID: 3, Name: "Apricots", Price: decimal.RequireFromString("6.25"), Stock: 0},
	}
}

func newTestService() (*Service, *memoryCart) {
	store := newMemoryCart(testProducts()...)
	return NewService(store, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("merges repeated adds into one line", func(t *testing.T) {
		svc, _ := newTestService()
		first, err := svc.AddItem(ctx, "u-1", 1, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := svc.AddItem(ctx, "u-1", 1, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second {
			t.Errorf("expected same line, got %d and %d", first, second)
		}

		view, _ := svc.View(ctx, "u-1")
		if len(view.Items) != 1 || view.Items[0].Quantity != 5 {
			t.Errorf("expected one line with quantity 5, got %+v", view.Items)
		}
	})

	t.Run("rejects increments beyond stock on existing line", func(t *testing.T) {
		svc, _ := newTestService()
		if _, err := svc.AddItem(ctx, "u-1", 2, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := svc.AddItem(ctx, "u-1", 2, 1)
		if !errors.Is(err, domain.ErrNotEnoughStock) {
			t.Fatalf("expected ErrNotEnoughStock, got %v", err)
		}

		view, _ := svc.View(ctx, "u-1")
		if view.Items[0].Quantity != 1 {
			t.Errorf("expected quantity unchanged at 1, got %d", view.Items[0].Quantity)
		}
	})

	t.Run("rejects out of stock product on new line", func(t *testing.T) {
		svc, _ := newTestService()
		if _, err := svc.AddItem(ctx, "u-1", 3, 1); !errors.Is(err, domain.ErrNotEnoughStock) {
			t.Fatalf("expected ErrNotEnoughStock, got %v", err)
		}
	})

	t.Run("rejects unknown product and bad quantity", func(t *testing.T) {
		svc, _ := newTestService()
		if _, err := svc.AddItem(ctx, "u-1", 99, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := svc.AddItem(ctx, "u-1", 1, 0); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	itemID, err := svc.AddItem(ctx, "u-1", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		delta   int
		want    int
		wantErr error
	}{
		{"increment", 1, 3, nil},
		{"beyond stock", 3, 0, domain.ErrNotEnoughStock},
		{"decrement clamps at one", -10, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.UpdateQuantity(ctx, "u-1", itemID, tt.delta)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && got != tt.want {
				t.Errorf("expected quantity %d, got %d", tt.want, got)
			}
		})
	}

	t.Run("foreign item is not found", func(t *testing.T) {
		if _, err := svc.UpdateQuantity(ctx, "u-2", itemID, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := svc.RemoveItem(ctx, "u-2", itemID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestService_View(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	_, _ = svc.AddItem(ctx, "u-1", 1, 2)
	_, _ = svc.AddItem(ctx, "u-1", 2, 1)

	view, err := svc.View(ctx, "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !view.CartTotal.Equal(decimal.RequireFromString("13.48")) {
		t.Errorf("expected cart total 13.48, got %s", view.CartTotal)
	}
	if view.CartCount != 3 {
		t.Errorf("expected cart count 3, got %d", view.CartCount)
	}
	if !view.Items[0].Total.Equal(decimal.RequireFromString("9.98")) {
		t.Errorf("expected line total 9.98, got %s", view.Items[0].Total)
	}

	empty, _ := svc.View(ctx, "nobody")
	if len(empty.Items) != 0 || !empty.CartTotal.IsZero() {
		t.Errorf("expected empty cart, got %+v", empty)
	}
}
