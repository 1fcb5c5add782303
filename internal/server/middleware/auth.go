package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/auth"
)

// Auth accepts a bearer token from the Authorization header or, for
// browser websocket clients that cannot set headers, the access_token
// query parameter.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.URL.Query().Get("access_token")
			}

			if tok != "" {
				ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				log.Debug().Str("path", r.URL.Path).Msg("auth: rejected token")
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyUserID, claims.UserID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, claims.Role)
	return ctx, true
}
