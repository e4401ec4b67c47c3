// Package validation checks identifiers and paths arriving from clients.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength bounds task titles
const MaxTitleLength = 200

var (
	// uuidRegex matches standard UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// storeIDRegex matches ids minted by the task store: <prefix>_<8 hex>
	storeIDRegex = regexp.MustCompile(`^(task|exec)_[0-9a-f]{8}$`)

	// projectIDRegex matches caller-chosen project keys
	projectIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.:-]{0,127}$`)
)

// ValidateUUID checks if the string is a valid UUID
func ValidateUUID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !uuidRegex.MatchString(id) {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// ValidateSessionID validates a Claude session ID, which is a UUID
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	return ValidateUUID(id)
}

// ValidateTaskID validates a task ID (task_<8 hex>)
func ValidateTaskID(id string) error {
	return validateStoreID(id, "task")
}

// ValidateExecutionID validates an execution ID (exec_<8 hex>)
func ValidateExecutionID(id string) error {
	return validateStoreID(id, "exec")
}

func validateStoreID(id, prefix string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", prefix)
	}
	if !strings.HasPrefix(id, prefix+"_") || !storeIDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s ID format: %s", prefix, id)
	}
	return nil
}

// ValidateProjectID validates a project key: alphanumeric start, then up to
// 127 of alphanumerics, dash, underscore, dot or colon
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	if !projectIDRegex.MatchString(id) {
		return fmt.Errorf("invalid project ID format: %s", id)
	}
	return nil
}

// ValidateTitle checks a task title is present and reasonably short
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateWorktree checks that path is an absolute, existing directory and
// returns it cleaned
func ValidateWorktree(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("worktree cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("worktree contains a NUL byte")
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("worktree must be absolute: %s", path)
	}

	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("worktree not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("worktree is not a directory: %s", clean)
	}
	return clean, nil
}
