package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func TestMiddleware(t *testing.T) {
	t.Run("rejects request without user id", func(t *testing.T) {
		called := false
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
		if called {
			t.Error("expected next handler not to be called")
		}
	})

	t.Run("puts forwarded user on context", func(t *testing.T) {
		var got domain.User
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = FromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		SetHeaders(req.Header, domain.User{ID: "u-1", Email: "ana@example.com", Name: "Ana", Role: "customer"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		if got.ID != "u-1" || got.Email != "ana@example.com" || got.Role != "customer" {
			t.Errorf("unexpected user on context: %+v", got)
		}
	})
}

func TestRequireRole(t *testing.T) {
	h := Middleware(RequireRole(domain.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin passes", domain.RoleAdmin, http.StatusNoContent},
		{"customer is forbidden", "customer", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/orders/1/status", nil)
			req.Header.Set(HeaderUserID, "u-1")
			req.Header.Set(HeaderUserRole, tt.role)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
