package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/medcart/internal/domain/auth"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// Authenticator resolves bearer tokens to principals through HMAC-SHA256
// hashed API keys.
type Authenticator struct {
	keys   auth.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given key repository
// and HMAC pepper.
func NewAuthenticator(keys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// HashToken returns the hex HMAC-SHA256 of token, as stored in api_keys.
func HashToken(pepper []byte, token string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate returns the principal owning token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	if token == "" {
		return auth.Principal{}, errUnauthorized
	}
	hash := HashToken(a.pepper, token)

	info, err := a.keys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return auth.Principal{}, errUnauthorized
		}
		return auth.Principal{}, errors.Wrap(err, "find api key")
	}

	// The row came back by hash; compare again without leaking timing.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return auth.Principal{}, errUnauthorized
	}
	if info.UserID == "" {
		return auth.Principal{}, errUnauthorized
	}
	return auth.PrincipalFromKey(info), nil
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// user wraps fn so it only runs for an authenticated caller.
func (h *Handler) user(fn http.HandlerFunc) http.Handler {
	return h.authenticated(fn, false)
}

// admin wraps fn so it only runs for callers holding the admin scope.
func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	return h.authenticated(fn, true)
}

func (h *Handler) authenticated(fn http.HandlerFunc, admin bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if admin && !p.IsAdmin() {
			h.fail(w, r, errForbidden)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("user_id", p.UserID))
		fn(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
