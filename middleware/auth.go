package middleware

import (
	"context"
	"excalidash/handlers/auth"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// LocalUserID owns every drawing when authentication is disabled.
const LocalUserID = "local"

// TokenParser verifies bearer tokens. *auth.Provider is one.
type TokenParser interface {
	Enabled() bool
	ParseJWT(token string) (*auth.AppClaims, error)
}

// AuthJWT requires a valid bearer token and stores its claims in the request
// context. When the parser is disabled every request runs as LocalUserID.
func AuthJWT(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !parser.Enabled() {
				claims := &auth.AppClaims{Login: LocalUserID}
				claims.Subject = LocalUserID
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Authorization header is required"})
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Authorization header format must be Bearer {token}"})
				return
			}

			claims, err := parser.ParseJWT(parts[1])
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the subject of the authenticated request.
func UserID(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// WithUser returns a context authenticated as userID.
func WithUser(ctx context.Context, userID string) context.Context {
	claims := &auth.AppClaims{}
	claims.Subject = userID
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
