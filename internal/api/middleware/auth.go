package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/internal/api/response"
	"github.com/rudrakspatel/reelforge/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Raw keys look like "rk_<hex>"; the first eight characters are stored in
// clear as the lookup prefix, the rest only as a bcrypt hash.
const keyPrefixLen = 8

const lastUsedWriteTimeout = 5 * time.Second

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store store.Store
}

func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// bearerToken pulls the raw key out of the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// Authenticate validates the API key and stores account_id, key_prefix, and
// scopes in the request context. Prefix collisions are possible, so every key
// sharing the prefix is checked against the presented secret.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey, ok := bearerToken(r)
		if !ok || len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN",
				"A valid API key is required", nil)
			return
		}

		candidates, err := a.store.GetAPIKeyByPrefix(r.Context(), rawKey[:keyPrefixLen])
		if err != nil {
			slog.Error("api key lookup failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		for _, key := range candidates {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
				continue
			}

			ctx := SetAccountID(r.Context(), key.AccountID)
			ctx = setKeyPrefix(ctx, key.KeyPrefix)
			ctx = setScopes(ctx, key.Scopes)

			// Last-used bookkeeping is off the request path.
			go a.touchLastUsed(key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN",
			"A valid API key is required", nil)
	})
}

func (a *Auth) touchLastUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedWriteTimeout)
	defer cancel()
	if err := a.store.UpdateAPIKeyLastUsed(ctx, id); err != nil {
		slog.Warn("updating api key last_used failed", "key_id", id, "error", err)
	}
}

// RequireScope returns middleware that checks whether the authenticated
// API key carries the given scope. Must run after Authenticate.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range getScopes(r) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, http.StatusForbidden, "FORBIDDEN",
				"This API key does not have the required scope", nil)
		})
	}
}
