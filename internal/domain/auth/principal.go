// Package auth resolves callers from hashed access tokens.
package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// Scopes understood by the API.
const (
	ScopeShop        = "shop"
	ScopeOrdersAdmin = "orders:admin"
)

// APIKeyInfo holds the identity and permission data for a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Email   string
	Phone   string
	Scopes  []string
}

// Principal is the authenticated caller of a request.
type Principal struct {
	KeyID  string
	UserID string
	Email  string
	Phone  string
	Scopes []string
}

// PrincipalFromKey builds the caller identity for a validated key.
func PrincipalFromKey(k *APIKeyInfo) Principal {
	return Principal{
		KeyID:  k.ID,
		UserID: k.UserID,
		Email:  k.Email,
		Phone:  k.Phone,
		Scopes: slices.Clone(k.Scopes),
	}
}

// HasScope reports whether the principal was granted scope.
func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// IsAdmin reports whether the principal may use the back-office operations.
func (p Principal) IsAdmin() bool {
	return p.HasScope(ScopeOrdersAdmin)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
