package claude

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/HyphaGroup/claudexec/internal/config"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/metrics"
)

// Source records which resolution step produced a command
type Source string

const (
	SourceOverride Source = "override"
	SourceConfig   Source = "config"
	SourceLocal    Source = "local"
	SourceFallback Source = "fallback"
)

// DefaultSearchDirs are probed for BinaryName when it is not on PATH
var DefaultSearchDirs = []string{
	"/usr/local/bin",
	"/usr/bin",
	"/opt/homebrew/bin",
	"~/.local/bin",
}

// ResolvedCommand is a complete shell command for one launch attempt
type ResolvedCommand struct {
	Command    string
	IsFallback bool
	Source     Source
}

// InstallCache remembers a detected local install. Only positive results
// are kept, so a missing install is probed again on the next resolution.
type InstallCache struct {
	mu   sync.Mutex
	path string
}

// Get returns the cached install path, if any
func (c *InstallCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path, c.path != ""
}

// Set records a detected install path
func (c *InstallCache) Set(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// ResolverConfig holds the inputs for command resolution
type ResolverConfig struct {
	// Override is used verbatim when set
	Override string
	// SettingsPath is the user settings file read for claudeCodePath
	SettingsPath string
	// SearchDirs are probed after PATH; DefaultSearchDirs when empty
	SearchDirs []string
}

// Resolver picks the command used to launch the CLI. Resolution never
// fails: every step that cannot be satisfied falls through to NpxCommand.
type Resolver struct {
	cfg   ResolverConfig
	cache *InstallCache

	lookPath func(string) (string, error)
	exists   func(string) bool
}

// NewResolver creates a resolver. The cache is owned by the caller and may
// be shared between resolvers; nil gets a private cache.
func NewResolver(cfg ResolverConfig, cache *InstallCache) *Resolver {
	if cache == nil {
		cache = &InstallCache{}
	}
	if len(cfg.SearchDirs) == 0 {
		cfg.SearchDirs = DefaultSearchDirs
	}
	return &Resolver{
		cfg:      cfg,
		cache:    cache,
		lookPath: exec.LookPath,
		exists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}
}

// Resolve returns the command for mode. An override is returned verbatim;
// every other source gets the mode's flags appended.
func (r *Resolver) Resolve(ctx context.Context, mode Mode) ResolvedCommand {
	resolved := r.resolve(ctx, mode)
	metrics.RecordResolution(string(resolved.Source))
	return resolved
}

func (r *Resolver) resolve(ctx context.Context, mode Mode) ResolvedCommand {
	log := logger.WithContext(ctx)

	if r.cfg.Override != "" {
		log.Info("using claude command override", "command", r.cfg.Override)
		return ResolvedCommand{Command: r.cfg.Override, Source: SourceOverride}
	}

	if r.cfg.SettingsPath != "" {
		if path, ok := config.ReadClaudeCodePath(r.cfg.SettingsPath); ok {
			log.Info("using claude code from settings", "path", path)
			return ResolvedCommand{Command: BuildCommand(path, mode), Source: SourceConfig}
		}
	}

	if path, ok := r.detectLocal(); ok {
		log.Info("using local claude code", "path", path)
		return ResolvedCommand{Command: BuildCommand(shellEscape(path), mode), Source: SourceLocal}
	}

	log.Info("falling back to npx claude code")
	return r.Fallback(mode)
}

// Fallback returns the universal npx invocation for mode
func (r *Resolver) Fallback(mode Mode) ResolvedCommand {
	return ResolvedCommand{
		Command:    BuildCommand(NpxCommand, mode),
		IsFallback: true,
		Source:     SourceFallback,
	}
}

// detectLocal finds BinaryName on PATH or in the search dirs, consulting
// and filling the install cache
func (r *Resolver) detectLocal() (string, bool) {
	if path, ok := r.cache.Get(); ok {
		return path, true
	}

	if path, err := r.lookPath(BinaryName); err == nil && path != "" {
		r.cache.Set(path)
		return path, true
	}

	for _, dir := range r.cfg.SearchDirs {
		candidate := filepath.Join(expandHome(dir), BinaryName)
		if r.exists(candidate) {
			r.cache.Set(candidate)
			return candidate, true
		}
	}
	return "", false
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
