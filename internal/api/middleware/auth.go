package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/domain"
)

type contextKey string

// TokenAuth requires a matching bearer token on every request. An empty
// configured token disables authentication.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			presented := strings.TrimPrefix(authHeader, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				api.HandleError(w, domain.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
