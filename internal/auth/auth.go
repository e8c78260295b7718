// Package auth guards the control routes with a shared bearer token.
// Everything else the server exposes is read-only and public.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// protectedPrefixes are the path prefixes that require a token.
var protectedPrefixes = []string{
	"/api/v1/control",
}

// isProtected returns true if the path requires auth.
func isProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// tokenFrom extracts the presented token. Browsers cannot set headers on a
// WebSocket handshake, so the "token" query parameter is accepted too.
func tokenFrom(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		return token, ok
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on control paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !isProtected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := tokenFrom(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="orrery"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
