package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/HyphaGroup/claudexec/internal/validation"
)

func planMode(plan bool) string {
	if plan {
		return "plan"
	}
	return ""
}

// absWorktree resolves dir and exits when it is not an existing directory
func absWorktree(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		fatalf("invalid worktree: %v", err)
	}
	clean, err := validation.ValidateWorktree(abs)
	if err != nil {
		fatalf("%v", err)
	}
	return clean
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode output: %v", err)
	}
}
