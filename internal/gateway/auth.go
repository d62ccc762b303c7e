package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrMissingToken = errors.New("missing bearer token")

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 tokens issued by the identity provider.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: secret,
		issuer: issuer,
	}
}

func (v *TokenVerifier) Verify(tokenString string) (domain.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return domain.User{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	return domain.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
