package middlewares

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
)

// Admin middleware to check for the 'admin' role in an OAuth token signed
// with secret.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

// IsAdmin reports whether the request carries verified claims with the
// 'admin' role.
func IsAdmin(r *http.Request) bool {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return false
	}

	rolesClaim, ok := claims["roles"]
	if !ok {
		return false
	}
	for _, role := range strings.Split(rolesClaim, ",") {
		if strings.TrimSpace(role) == "admin" {
			return true
		}
	}
	return false
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
