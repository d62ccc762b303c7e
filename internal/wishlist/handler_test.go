package wishlist

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/shopspring/decimal"
)

type memoryWishlist struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	items    map[string][]domain.WishlistItem
	clock    time.Time
}

func newMemoryWishlist() *memoryWishlist {
	return &memoryWishlist{
		products: map[int64]domain.Product{
			1: {ID: 1, Name: "Grapes", Price: decimal.RequireFromString("4.99"), Stock: 5},
			2: {ID: 2, Name: "Oranges", Price: decimal.RequireFromString("3.50"), Stock: 0},
		},
		items: map[string][]domain.WishlistItem{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryWishlist) List(_ context.Context, userID string) ([]domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[userID]
	out := make([]domain.WishlistItem, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out, nil
}

func (m *memoryWishlist) Add(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, it := range m.items[userID] {
		if it.Product.ID == productID {
			return nil
		}
	}
	m.clock = m.clock.Add(time.Minute)
	m.items[userID] = append(m.items[userID], domain.WishlistItem{Product: p, AddedAt: m.clock})
	return nil
}

func (m *memoryWishlist) Remove(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[userID]
	for i, it := range items {
		if it.Product.ID == productID {
			m.items[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func newTestMux() *http.ServeMux {
	h := NewHandler(newMemoryWishlist(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.Handle("GET /wishlist", identity.Middleware(http.HandlerFunc(h.HandleList)))
	mux.Handle("POST /wishlist", identity.Middleware(http.HandlerFunc(h.HandleAdd)))
	mux.Handle("DELETE /wishlist/{product_id}", identity.Middleware(http.HandlerFunc(h.HandleRemove)))
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderUserID, "u-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeItems(t *testing.T, rec *httptest.ResponseRecorder) []domain.WishlistItem {
	t.Helper()
	var items []domain.WishlistItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return items
}

func TestHandler_Wishlist(t *testing.T) {
	t.Run("empty wishlist is an empty list", func(t *testing.T) {
		mux := newTestMux()
		rec := do(mux, http.MethodGet, "/wishlist", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("expected [], got %s", body)
		}
	})

	t.Run("adds products newest first", func(t *testing.T) {
		mux := newTestMux()
		if rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":1}`); rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":2}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		items := decodeItems(t, rec)
		if len(items) != 2 || items[0].Product.ID != 2 || items[1].Product.ID != 1 {
			t.Errorf("unexpected wishlist: %+v", items)
		}
	})

	t.Run("out of stock products can be saved", func(t *testing.T) {
		mux := newTestMux()
		rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":2}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if items := decodeItems(t, rec); items[0].Product.InStock() {
			t.Errorf("expected product to be out of stock")
		}
	})

	t.Run("adding twice keeps one entry", func(t *testing.T) {
		mux := newTestMux()
		do(mux, http.MethodPost, "/wishlist", `{"product_id":1}`)
		rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":1}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if items := decodeItems(t, rec); len(items) != 1 {
			t.Errorf("expected 1 item, got %d", len(items))
		}
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		mux := newTestMux()
		rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":99}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}

		var resp map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["error"] != "product not found" {
			t.Errorf("expected 'product not found', got %s", resp["error"])
		}
	})

	t.Run("invalid body or id is 400", func(t *testing.T) {
		mux := newTestMux()
		if rec := do(mux, http.MethodPost, "/wishlist", `{`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if rec := do(mux, http.MethodPost, "/wishlist", `{"product_id":0}`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if rec := do(mux, http.MethodDelete, "/wishlist/abc", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("removes product", func(t *testing.T) {
		mux := newTestMux()
		do(mux, http.MethodPost, "/wishlist", `{"product_id":1}`)
		rec := do(mux, http.MethodDelete, "/wishlist/1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if items := decodeItems(t, rec); len(items) != 0 {
			t.Errorf("expected empty wishlist, got %d items", len(items))
		}

		if rec := do(mux, http.MethodDelete, "/wishlist/1", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404 on second remove, got %d", rec.Code)
		}
	})

	t.Run("wishlists are per user", func(t *testing.T) {
		mux := newTestMux()
		do(mux, http.MethodPost, "/wishlist", `{"product_id":1}`)

		req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
		req.Header.Set(identity.HeaderUserID, "u-2")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if items := decodeItems(t, rec); len(items) != 0 {
			t.Errorf("expected empty wishlist for other user, got %d items", len(items))
		}
	})

	t.Run("missing identity is 401", func(t *testing.T) {
		mux := newTestMux()
		req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})
}
