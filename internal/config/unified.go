// Package config loads claudexec.jsonc and the Claude user settings file.
//
// unified.go - Service configuration
//
// This file contains:
// - Config and its sections
// - FindConfigPath with dir / ./config / ~/.claudexec precedence
// - LoadFile and Load with defaults applied

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// ConfigFileName is the service configuration file name
const ConfigFileName = "claudexec.jsonc"

// ErrConfigNotFound is returned when no configuration file exists
var ErrConfigNotFound = errors.New(ConfigFileName + " not found")

// Config is the claudexec.jsonc file format
type Config struct {
	Server   ServerSection   `json:"server"`
	Executor ExecutorSection `json:"executor"`
	Launch   LaunchSection   `json:"launch"`
	Storage  StorageSection  `json:"storage"`
	Cleanup  CleanupSection  `json:"cleanup"`
	Logging  LoggingSection  `json:"logging"`

	ConfigDir string `json:"-"`
}

// ServerSection contains listener addresses
type ServerSection struct {
	Address        string   `json:"address"`
	MetricsAddress string   `json:"metrics_address"`
	AuthTokens     []string `json:"auth_tokens"` // Bearer tokens accepted on /mcp; empty disables auth
}

// ExecutorSection controls how the Claude CLI is resolved and run
type ExecutorSection struct {
	Command      string   `json:"command"`       // Used verbatim when set
	ClaudeConfig string   `json:"claude_config"` // User settings file with claudeCodePath
	SearchPaths  []string `json:"search_paths"`  // Extra install dirs to probe
	PlanWatch    string   `json:"plan_watch"`    // inprocess or script
}

// LaunchSection throttles launches per project
type LaunchSection struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// StorageSection locates the database
type StorageSection struct {
	DataDir string `json:"data_dir"`
}

// CleanupSection schedules retention pruning
type CleanupSection struct {
	Schedule       string `json:"schedule"` // 5-field cron expression
	RetentionHours int    `json:"retention_hours"`
}

// LoggingSection configures the slog handler
type LoggingSection struct {
	Dir  string `json:"dir"`
	JSON bool   `json:"json"`
}

// FindConfigPath returns the path to claudexec.jsonc using precedence:
// 1. configDir + /claudexec.jsonc (if configDir specified)
// 2. ./config/claudexec.jsonc (project-local)
// 3. ~/.claudexec/config/claudexec.jsonc (user global)
func FindConfigPath(configDir string) (string, error) {
	if configDir != "" {
		path := filepath.Join(configDir, ConfigFileName)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w in %s", ErrConfigNotFound, configDir)
		}
		return absPath(path), nil
	}

	candidates := []string{
		filepath.Join("config", ConfigFileName),
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".claudexec", "config", ConfigFileName))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return absPath(path), nil
		}
	}

	return "", fmt.Errorf("%w; tried: %v", ErrConfigNotFound, candidates)
}

// Load finds and loads the configuration. When no configDir is given and
// no file exists, built-in defaults are returned.
func Load(configDir string) (*Config, error) {
	path, err := FindConfigPath(configDir)
	if err != nil {
		if configDir == "" && errors.Is(err, ErrConfigNotFound) {
			return Default(), nil
		}
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a single claudexec.jsonc file
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	cfg.ConfigDir = filepath.Dir(configPath)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	switch c.Executor.PlanWatch {
	case "inprocess", "script":
	default:
		return fmt.Errorf("executor.plan_watch must be inprocess or script, got %q", c.Executor.PlanWatch)
	}
	if c.Launch.RatePerSecond < 0 {
		return fmt.Errorf("launch.rate_per_second must not be negative")
	}
	if c.Cleanup.RetentionHours < 0 {
		return fmt.Errorf("cleanup.retention_hours must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8088"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}

	if cfg.Executor.ClaudeConfig == "" {
		cfg.Executor.ClaudeConfig = DefaultClaudeSettingsPath()
	}
	if cfg.Executor.PlanWatch == "" {
		cfg.Executor.PlanWatch = "inprocess"
	}

	if cfg.Launch.RatePerSecond == 0 {
		cfg.Launch.RatePerSecond = 1
	}
	if cfg.Launch.Burst == 0 {
		cfg.Launch.Burst = 5
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}

	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "0 * * * *"
	}
	if cfg.Cleanup.RetentionHours == 0 {
		cfg.Cleanup.RetentionHours = 168
	}

	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = filepath.Join(cfg.Storage.DataDir, "logs")
	}
}

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".claudexec", "data")
	}
	return "data"
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
