package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultClaudeSettingsPath returns ~/.claude.json, or "" without a home dir
func DefaultClaudeSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".claude.json")
}

// ReadClaudeCodePath returns the claudeCodePath string from the Claude user
// settings file. A missing file, unparseable content or a non-string field
// all report false.
func ReadClaudeCodePath(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return "", false
	}

	codePath, ok := settings["claudeCodePath"].(string)
	if !ok || codePath == "" {
		return "", false
	}
	return codePath, true
}
