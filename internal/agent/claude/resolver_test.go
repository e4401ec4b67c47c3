package claude

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// stubResolver returns a resolver whose PATH lookup and file probes are
// answered from the given values
func stubResolver(t *testing.T, cfg ResolverConfig, cache *InstallCache, onPath string, files ...string) (*Resolver, *int) {
	t.Helper()
	r := NewResolver(cfg, cache)

	lookups := 0
	r.lookPath = func(name string) (string, error) {
		lookups++
		if name != BinaryName {
			t.Errorf("lookPath(%q), want %q", name, BinaryName)
		}
		if onPath == "" {
			return "", errors.New("not found")
		}
		return onPath, nil
	}
	r.exists = func(path string) bool {
		for _, f := range files {
			if f == path {
				return true
			}
		}
		return false
	}
	return r, &lookups
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".claude.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolver_Override(t *testing.T) {
	settings := writeSettings(t, `{"claudeCodePath": "/opt/claude"}`)
	r, lookups := stubResolver(t, ResolverConfig{Override: "my-claude --flag", SettingsPath: settings}, nil, "/usr/bin/claude-code")

	for _, mode := range []Mode{ModeDefault, ModePlan} {
		got := r.Resolve(context.Background(), mode)
		if got.Command != "my-claude --flag" || got.IsFallback || got.Source != SourceOverride {
			t.Errorf("Resolve(%v) = %+v, want verbatim override", mode, got)
		}
	}
	if *lookups != 0 {
		t.Errorf("override should skip detection, got %d lookups", *lookups)
	}
}

func TestResolver_SettingsFile(t *testing.T) {
	settings := writeSettings(t, `{"theme": "dark", "claudeCodePath": "/opt/claude/bin/claude"}`)
	r, _ := stubResolver(t, ResolverConfig{SettingsPath: settings}, nil, "/usr/bin/claude-code")

	got := r.Resolve(context.Background(), ModePlan)
	want := "/opt/claude/bin/claude -p --permission-mode=plan --verbose --output-format=stream-json"
	if got.Command != want || got.IsFallback || got.Source != SourceConfig {
		t.Errorf("Resolve() = %+v, want command %q from config", got, want)
	}
}

func TestResolver_BadSettingsFallThrough(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{not json`},
		{"missing field", `{"theme": "dark"}`},
		{"non-string field", `{"claudeCodePath": 12}`},
		{"empty field", `{"claudeCodePath": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := stubResolver(t, ResolverConfig{SettingsPath: writeSettings(t, tt.content)}, nil, "/usr/bin/claude-code")
			got := r.Resolve(context.Background(), ModeDefault)
			if got.Source != SourceLocal {
				t.Errorf("Resolve() source = %s, want local", got.Source)
			}
		})
	}
}

func TestResolver_LocalOnPath(t *testing.T) {
	r, _ := stubResolver(t, ResolverConfig{SettingsPath: "/nonexistent/.claude.json"}, nil, "/usr/local/bin/claude-code")

	got := r.Resolve(context.Background(), ModeDefault)
	want := "/usr/local/bin/claude-code -p --dangerously-skip-permissions --verbose --output-format=stream-json"
	if got.Command != want || got.IsFallback || got.Source != SourceLocal {
		t.Errorf("Resolve() = %+v, want %q", got, want)
	}
}

func TestResolver_LocalInSearchDir(t *testing.T) {
	dirs := []string{"/first", "/second dir"}
	r, _ := stubResolver(t, ResolverConfig{SearchDirs: dirs}, nil, "", "/second dir/claude-code")

	got := r.Resolve(context.Background(), ModeDefault)
	want := "'/second dir/claude-code' -p --dangerously-skip-permissions --verbose --output-format=stream-json"
	if got.Command != want {
		t.Errorf("Resolve() = %q, want %q", got.Command, want)
	}
}

func TestResolver_Fallback(t *testing.T) {
	r, _ := stubResolver(t, ResolverConfig{SearchDirs: []string{"/nowhere"}}, nil, "")

	got := r.Resolve(context.Background(), ModePlan)
	want := "npx -y @anthropic-ai/claude-code@latest -p --permission-mode=plan --verbose --output-format=stream-json"
	if got.Command != want || !got.IsFallback || got.Source != SourceFallback {
		t.Errorf("Resolve() = %+v, want npx fallback", got)
	}
}

func TestResolver_CachesOnlyPositive(t *testing.T) {
	cache := &InstallCache{}

	missing, lookups := stubResolver(t, ResolverConfig{}, cache, "")
	missing.Resolve(context.Background(), ModeDefault)
	missing.Resolve(context.Background(), ModeDefault)
	if *lookups != 2 {
		t.Errorf("negative result should be re-probed, got %d lookups", *lookups)
	}
	if _, ok := cache.Get(); ok {
		t.Error("negative result should not be cached")
	}

	found, lookups := stubResolver(t, ResolverConfig{}, cache, "/usr/bin/claude-code")
	found.Resolve(context.Background(), ModeDefault)
	found.Resolve(context.Background(), ModePlan)
	if *lookups != 1 {
		t.Errorf("positive result should be cached, got %d lookups", *lookups)
	}

	// A resolver sharing the cache sees the install without probing.
	shared, lookups := stubResolver(t, ResolverConfig{}, cache, "")
	got := shared.Resolve(context.Background(), ModeDefault)
	if got.Source != SourceLocal || *lookups != 0 {
		t.Errorf("shared cache: Resolve() = %+v after %d lookups", got, *lookups)
	}
}

func TestInstallCache_Concurrent(t *testing.T) {
	cache := &InstallCache{}
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Set("/usr/bin/claude-code")
			_, _ = cache.Get()
		}()
	}
	wg.Wait()

	if path, ok := cache.Get(); !ok || path != "/usr/bin/claude-code" {
		t.Errorf("Get() = %q, %v", path, ok)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/.local/bin"); got != filepath.Join(home, ".local", "bin") {
		t.Errorf("expandHome() = %q", got)
	}
	if got := expandHome("/usr/bin"); got != "/usr/bin" {
		t.Errorf("expandHome() = %q", got)
	}
}
