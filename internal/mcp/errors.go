package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/logger"
)

// sensitivePatterns contains substrings that indicate sensitive error details
var sensitivePatterns = []string{
	"API_KEY",
	"api_key",
	"token",
	"password",
	"secret",
	"credential",
}

// internalErrorPatterns contains substrings that indicate internal errors
var internalErrorPatterns = []string{
	"connection refused",
	"permission denied",
	"database is locked",
	"sql:",
	"context canceled",
	"EOF",
}

// SanitizeError returns a client-safe error message.
// Internal details are logged but not exposed to clients.
func SanitizeError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	var spawnErr *agent.SpawnError
	if errors.As(err, &spawnErr) {
		logger.ErrorContext(ctx, "tool failed", "tool", operation, "error", err)
		msg := fmt.Sprintf("%s failed: could not launch claude (%s)", operation, spawnErr.Phase)
		if agent.IsFallbackExhausted(err) {
			msg += " after npx fallback"
		}
		return errors.New(msg)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			logger.ErrorContext(ctx, "tool failed (sensitive)", "tool", operation, "error", err)
			return fmt.Errorf("%s failed: internal configuration error", operation)
		}
	}

	for _, pattern := range internalErrorPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			logger.ErrorContext(ctx, "tool failed (internal)", "tool", operation, "error", err)
			return fmt.Errorf("%s failed: internal error", operation)
		}
	}

	if isUserFacingError(lower) {
		return err
	}

	logger.ErrorContext(ctx, "tool failed", "tool", operation, "error", err)
	return fmt.Errorf("%s failed: %s", operation, genericErrorMessage(errStr))
}

// isUserFacingError returns true if the error message is safe to show to users
func isUserFacingError(lower string) bool {
	userFacingPatterns := []string{
		"not found",
		"not running",
		"could not launch",
		"invalid",
		"required",
		"must be",
		"cannot be",
		"exceeded",
		"limit",
	}

	for _, pattern := range userFacingPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// genericErrorMessage extracts a safe portion of the error or returns generic text
func genericErrorMessage(errStr string) string {
	if len(errStr) < 50 {
		return errStr
	}
	return "an unexpected error occurred"
}
