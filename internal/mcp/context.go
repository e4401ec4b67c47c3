package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const contextKeyRemoteAddr contextKey = "claudexec-remote-addr"

// generateRequestID creates a unique request identifier
func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithRemoteAddr adds the remote address to context
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, contextKeyRemoteAddr, addr)
}

// GetRemoteAddr extracts the remote address from context
func GetRemoteAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(contextKeyRemoteAddr).(string); ok {
		return addr
	}
	return ""
}
