package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/ratelimit"
)

// Middleware creates HTTP middleware that accepts any of the configured
// bearer tokens. With no tokens configured every request passes through.
func Middleware(tokens []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(tokens) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, "Authentication required (Bearer token)", http.StatusUnauthorized, -32001)
				return
			}

			tokenID := strings.TrimPrefix(header, "Bearer ")
			if !validToken(tokens, tokenID) {
				logger.WarnContext(r.Context(), "token validation failed", "token", maskToken(tokenID), "remote_addr", r.RemoteAddr)
				jsonError(w, "Invalid token", http.StatusUnauthorized, -32001)
				return
			}

			ctx := WithContext(r.Context(), &AuthContext{TokenID: maskToken(tokenID)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware throttles requests per token, or per remote address
// when the request is unauthenticated. Apply it after Middleware.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if authCtx := FromContext(r.Context()); authCtx != nil {
				key = authCtx.TokenID
			}

			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				jsonError(w, "Rate limit exceeded. Please slow down.", http.StatusTooManyRequests, -32029)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validToken(tokens []string, candidate string) bool {
	ok := false
	for _, token := range tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			ok = true
		}
	}
	return ok
}

func jsonError(w http.ResponseWriter, message string, status, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"id": nil,
	})
}

func maskToken(tokenID string) string {
	if len(tokenID) <= 12 {
		return "***"
	}
	return tokenID[:8] + "..." + tokenID[len(tokenID)-4:]
}
