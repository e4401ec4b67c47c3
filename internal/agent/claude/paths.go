package claude

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/logger"
)

// MakeRelative returns path relative to worktree when path lies inside it.
// Relative paths are returned unchanged. When a plain prefix match fails
// both sides are resolved through symlinks and matched again; if that also
// fails the original path is returned. It never returns an error.
func MakeRelative(path, worktree string) string {
	if !filepath.IsAbs(path) {
		return path
	}

	if rel, ok := stripPrefix(path, worktree); ok {
		return rel
	}

	canonPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		logger.Slog().Debug("could not canonicalize path, returning original", "path", path, "error", err)
		return path
	}
	canonWorktree, err := filepath.EvalSymlinks(worktree)
	if err != nil {
		logger.Slog().Debug("could not canonicalize worktree, returning original", "worktree", worktree, "error", err)
		return path
	}

	if rel, ok := stripPrefix(canonPath, canonWorktree); ok {
		return rel
	}

	logger.Slog().Warn("path is outside worktree, returning original",
		"path", canonPath, "worktree", canonWorktree)
	return path
}

// stripPrefix removes root from path when root is a whole-component prefix
// of path. "/tmp/w" is a prefix of "/tmp/w/a" but not of "/tmp/wx/a".
func stripPrefix(path, root string) (string, bool) {
	if root == "" {
		return "", false
	}
	path = filepath.Clean(path)
	root = filepath.Clean(root)

	if path == root {
		return "", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return path[len(prefix):], true
}
