// Package auth authenticates HTTP MCP clients with static bearer tokens.
package auth

import (
	"context"
)

type contextKey string

const authContextKey contextKey = "auth"

// AuthContext identifies the caller of an authenticated request
type AuthContext struct {
	TokenID string // Masked token, safe to log
}

// WithContext adds an AuthContext to the context
func WithContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// FromContext retrieves the AuthContext from the context
func FromContext(ctx context.Context) *AuthContext {
	auth, ok := ctx.Value(authContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}
