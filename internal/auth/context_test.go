package auth

import (
	"context"
	"testing"
)

func TestContext_RoundTrip(t *testing.T) {
	authCtx := &AuthContext{TokenID: "abcdefgh...wxyz"}
	ctx := WithContext(context.Background(), authCtx)

	got := FromContext(ctx)
	if got != authCtx {
		t.Errorf("FromContext() = %v, want %v", got, authCtx)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}
