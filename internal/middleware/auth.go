// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth is a middleware that requires "Authorization: Bearer <token>" on
// every request. An empty token disables the check, which is the default for a
// control API bound to localhost.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="photos-sync"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
