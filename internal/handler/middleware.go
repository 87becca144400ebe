package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/bmbank/bmbank-api/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// TokenValidator verifies a bearer token and returns the session it carries.
type TokenValidator interface {
	ValidateToken(token string) (*domain.Session, error)
}

// Authenticate extracts and verifies the bearer token, storing the
// session in the request context. Requests without a valid token get 401.
func Authenticate(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			sess, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects sessions whose role is outside the allowed set.
// It assumes Authenticate already ran.
func RequireRole(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing session")
				return
			}
			if !sess.Role.In(roles...) {
				err := &domain.ErrForbidden{Required: roles, Current: sess.Role}
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the authenticated session, if any.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*domain.Session)
	return sess, ok
}
