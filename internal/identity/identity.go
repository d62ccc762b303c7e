// Package identity carries the authenticated caller through a request. The
// gateway verifies the bearer token and forwards the claims as headers; the
// core trusts those headers and nothing else.
package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

type contextKey struct{}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func FromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(contextKey{}).(domain.User)
	return user, ok && user.ID != ""
}

// SetHeaders writes user onto outgoing request headers.
func SetHeaders(h http.Header, user domain.User) {
	h.Set(HeaderUserID, user.ID)
	h.Set(HeaderUserEmail, user.Email)
	h.Set(HeaderUserName, user.Name)
	h.Set(HeaderUserRole, user.Role)
}

// Middleware rejects requests without a forwarded user id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderUserID)
		if id == "" {
			unauthorized(w)
			return
		}

		user := domain.User{
			ID:    id,
			Email: r.Header.Get(HeaderUserEmail),
			Name:  r.Header.Get(HeaderUserName),
			Role:  r.Header.Get(HeaderUserRole),
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRole wraps next so only callers carrying role reach it.
func RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := FromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if user.Role != role {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": domain.ErrUnauthorized.Error()})
}
