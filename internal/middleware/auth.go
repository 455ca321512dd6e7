// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cafeswipe/server/internal/auth"
)

// unauthorized writes a 401 in the same {"error":{code,message}}
// envelope the API handlers use, so clients parse one error shape
// across the whole surface.
func unauthorized(w http.ResponseWriter, r *http.Request, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}

// Authenticate validates the Authorization bearer token and stores the
// user's UUID in the request context for downstream handlers.
//
// When required is true, requests without a valid access token are
// rejected with 401. When false, unauthenticated requests pass through
// anonymously; a malformed or expired token is still rejected so
// clients learn their token is bad instead of silently losing their
// preference state.
func Authenticate(tokens *auth.Service, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					unauthorized(w, r, "missing_token", "Authorization header is required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, r, "malformed_authorization", "Authorization header must be a bearer token")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					unauthorized(w, r, "token_expired", "Access token has expired")
					return
				}
				unauthorized(w, r, "invalid_token", "Invalid access token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				unauthorized(w, r, "wrong_token_type", "An access token is required")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
