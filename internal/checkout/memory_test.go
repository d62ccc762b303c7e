package checkout

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type memoryState struct {
	products map[int64]domain.Product
	carts    map[string]map[int64]int
	wallets  map[string]decimal.Decimal
	coupons  map[string]domain.Coupon
	orders   map[string]domain.Order
	attempts map[string]string
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		products: make(map[int64]domain.Product, len(s.products)),
		carts:    make(map[string]map[int64]int, len(s.carts)),
		wallets:  make(map[string]decimal.Decimal, len(s.wallets)),
		coupons:  s.coupons,
		orders:   make(map[string]domain.Order, len(s.orders)),
		attempts: make(map[string]string, len(s.attempts)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for user, lines := range s.carts {
		cp := make(map[int64]int, len(lines))
		for k, v := range lines {
			cp[k] = v
		}
		c.carts[user] = cp
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	return c
}

// memoryStore serializes transactions behind one mutex and applies a
// transaction's writes only when fn succeeds.
type memoryStore struct {
	mu       sync.Mutex
	state    *memoryState
	failures []error
	txCount  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: &memoryState{
		products: map[int64]domain.Product{},
		carts:    map[string]map[int64]int{},
		wallets:  map[string]decimal.Decimal{},
		coupons:  map[string]domain.Coupon{},
		orders:   map[string]domain.Order{},
		attempts: map[string]string{},
	}}
}

// failCommits makes the next len(errs) transactions fail at commit with the
// given errors.
func (m *memoryStore) failCommits(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

func (m *memoryStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	work := m.state.clone()
	if err := fn(&memoryTx{s: work}); err != nil {
		return err
	}
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	m.state = work
	return nil
}

func (m *memoryStore) snapshot() *memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memoryStore) seedProduct(p domain.Product) {
	m.state.products[p.ID] = p
}

func (m *memoryStore) seedCart(userID string, lines map[int64]int) {
	m.state.carts[userID] = lines
}

func (m *memoryStore) seedWallet(userID, balance string) {
	m.state.wallets[userID] = decimal.RequireFromString(balance)
}

func (m *memoryStore) seedCoupon(c domain.Coupon) {
	m.state.coupons[c.Code] = c
}

type memoryTx struct {
	s *memoryState
}

func (t *memoryTx) CartLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	lines := []domain.CartLine{}
	for productID, qty := range t.s.carts[userID] {
		lines = append(lines, domain.CartLine{ItemID: productID, Product: t.s.products[productID], Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Product.ID < lines[j].Product.ID })
	return lines, nil
}

func (t *memoryTx) ActiveCoupon(_ context.Context, code string) (*domain.Coupon, error) {
	c, ok := t.s.coupons[code]
	if !ok || !c.Active {
		return nil, domain.ErrInvalidCoupon
	}
	return &c, nil
}

func (t *memoryTx) DebitWallet(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := t.s.wallets[userID]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	if balance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	t.s.wallets[userID] = balance.Sub(amount)
	return t.s.wallets[userID], nil
}

func (t *memoryTx) CreateOrder(_ context.Context, order *domain.Order) error {
	t.s.orders[order.ID] = *order
	return nil
}

func (t *memoryTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p := t.s.products[productID]
	if p.Stock < quantity {
		return &domain.OutOfStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	t.s.products[productID] = p
	return nil
}

func (t *memoryTx) ClearCart(_ context.Context, userID string) error {
	if _, ok := t.s.carts[userID]; ok {
		t.s.carts[userID] = map[int64]int{}
	}
	return nil
}

func (t *memoryTx) FindAttempt(_ context.Context, userID, key string) (string, error) {
	return t.s.attempts[userID+"/"+key], nil
}

func (t *memoryTx) RecordAttempt(_ context.Context, userID, key, orderID string) error {
	t.s.attempts[userID+"/"+key] = orderID
	return nil
}

type memorySessions struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *memorySessions) Current(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[userID], nil
}

func (m *memorySessions) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, userID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
	return n.err
}

func (n *recordingNotifier) placed() []domain.Order {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Order(nil), n.orders...)
}
