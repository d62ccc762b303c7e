package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(subject string) Claims {
	return Claims{
		Email: subject + "@example.com",
		Name:  "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "storefront-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestTokenVerifier_Verify(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "storefront-auth")

	t.Run("returns user from valid token", func(t *testing.T) {
		claims := validClaims("user-1")
		claims.Role = domain.RoleAdmin

		user, err := verifier.Verify(signToken(t, testSecret, jwt.SigningMethodHS256, claims))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != "user-1" || user.Email != "user-1@example.com" || user.Role != domain.RoleAdmin {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, []byte("other"), jwt.SigningMethodHS256, validClaims("user-1"))
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				claims := validClaims("user-1")
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return signToken(t, testSecret, jwt.SigningMethodHS256, claims)
			},
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				claims := validClaims("user-1")
				claims.ExpiresAt = nil
				return signToken(t, testSecret, jwt.SigningMethodHS256, claims)
			},
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS512, validClaims("user-1"))
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				claims := validClaims("user-1")
				claims.Issuer = "someone-else"
				return signToken(t, testSecret, jwt.SigningMethodHS256, claims)
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, validClaims(""))
			},
		},
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not-a-token" },
		},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token(t))
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer ", wantErr: true},
		{header: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if tt.wantErr {
			if !errors.Is(err, ErrMissingToken) {
				t.Errorf("%q: expected ErrMissingToken, got %v", tt.header, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: expected %q, got %q (%v)", tt.header, tt.want, got, err)
		}
	}
}
