// Package middleware provides HTTP middleware for the Unbiased API.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminToken returns middleware that requires an "Authorization: Bearer"
// token matching the bcrypt hash. With an empty hash every request passes,
// which suits local development; a warning is logged once.
func AdminToken(tokenHash string) func(http.Handler) http.Handler {
	if tokenHash == "" {
		slog.Warn("ADMIN_TOKEN_HASH not set, admin routes are unprotected")
		return func(next http.Handler) http.Handler { return next }
	}
	hash := []byte(tokenHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
				slog.Debug("admin token rejected", "remote", r.RemoteAddr)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="unbiased"`)
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}
