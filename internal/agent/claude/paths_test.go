package claude

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMakeRelative(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		worktree string
		want     string
	}{
		{"relative path unchanged", "src/main.rs", "/tmp/test-worktree", "src/main.rs"},
		{"inside worktree", "/tmp/test-worktree/src/main.rs", "/tmp/test-worktree", "src/main.rs"},
		{"worktree with trailing slash", "/tmp/test-worktree/a/b.go", "/tmp/test-worktree/", "a/b.go"},
		{"worktree itself", "/tmp/test-worktree", "/tmp/test-worktree", ""},
		{"sibling sharing a prefix", "/nonexistent/worktree-other/a.go", "/nonexistent/worktree", "/nonexistent/worktree-other/a.go"},
		{"outside and nonexistent", "/nonexistent/elsewhere/file.txt", "/tmp/test-worktree", "/nonexistent/elsewhere/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeRelative(tt.path, tt.worktree); got != tt.want {
				t.Errorf("MakeRelative(%q, %q) = %q, want %q", tt.path, tt.worktree, got, tt.want)
			}
		})
	}
}

func TestMakeRelative_Symlink(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	if err := os.MkdirAll(filepath.Join(realDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(realDir, "src", "lib.go"), []byte("package src\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(realDir, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	// Path reported through the symlink, worktree given as the real dir.
	got := MakeRelative(filepath.Join(link, "src", "lib.go"), realDir)
	if got != filepath.Join("src", "lib.go") {
		t.Errorf("MakeRelative() through symlink = %q, want src/lib.go", got)
	}

	// Existing path outside the worktree comes back unchanged.
	outside := filepath.Join(root, "outside.txt")
	if err := os.WriteFile(outside, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := MakeRelative(outside, realDir); got != outside {
		t.Errorf("MakeRelative() outside = %q, want %q", got, outside)
	}
}
