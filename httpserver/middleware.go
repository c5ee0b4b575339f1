package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

type claimsContextKey struct{}

// RequireAuth verifies the bearer token and stores the claims on the
// request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.writeError(w, r, apperr.Auth("missing authorization header", nil))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			h.writeError(w, r, apperr.Auth("invalid authorization header format", nil))
			return
		}

		claims, err := h.tokens.Verify(parts[1])
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers without the admin role. Must run after
// RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			h.writeError(w, r, apperr.Auth("missing authentication", nil))
			return
		}
		if claims.Role != interfaces.RoleAdmin {
			h.writeError(w, r, apperr.Auth("admin role required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
