package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"resto-console/internal/auth"
)

// InternalAuth guards service-to-service endpoints with a shared secret sent
// as a bearer token. An empty secret disables the endpoints.
func InternalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := strings.TrimSpace(secret)
			if secret == "" {
				writeAuthError(w, http.StatusForbidden, "Internal access is disabled")
				return
			}

			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				writeAuthError(w, http.StatusUnauthorized, "Invalid internal token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
