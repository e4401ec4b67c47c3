// Package claude runs the Claude Code CLI as a task executor.
//
// command.go - Command line construction
//
// This file contains:
// - Mode (default or plan) and its flag sets
// - NpxCommand, the universal fallback invocation
// - BuildCommand and WithResume for assembling command strings
//
// The CLI is always driven in print mode with stream-json output so that
// its stdout can be normalized line by line.

package claude

import (
	"strings"

	"github.com/HyphaGroup/claudexec/internal/agent"
)

// Mode selects the interaction mode the CLI is started in
type Mode int

const (
	// ModeDefault runs unattended with permission checks bypassed
	ModeDefault Mode = iota
	// ModePlan restricts the agent to planning; it pauses once a plan is ready
	ModePlan
)

// NpxCommand runs the latest published CLI without a local install
const NpxCommand = "npx -y @anthropic-ai/claude-code@latest"

// BinaryName is the command looked up on PATH and in common install dirs
const BinaryName = "claude-code"

const (
	defaultFlags = "-p --dangerously-skip-permissions --verbose --output-format=stream-json"
	planFlags    = "-p --permission-mode=plan --verbose --output-format=stream-json"
)

func (m Mode) String() string {
	if m == ModePlan {
		return "plan"
	}
	return "default"
}

// ExecutorType returns the label recorded for conversations in this mode
func (m Mode) ExecutorType() agent.ExecutorType {
	if m == ModePlan {
		return agent.ExecutorClaudePlan
	}
	return agent.ExecutorClaude
}

// ParseMode accepts "plan" and treats everything else as the default mode
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "plan") {
		return ModePlan
	}
	return ModeDefault
}

// BuildCommand appends the mode's flags to base
func BuildCommand(base string, mode Mode) string {
	if mode == ModePlan {
		return base + " " + planFlags
	}
	return base + " " + defaultFlags
}

// WithResume appends the resume flag for sessionID
func WithResume(command, sessionID string) string {
	return command + " --resume=" + shellEscape(sessionID)
}

// shellEscape quotes s for sh unless it is made only of safe characters
func shellEscape(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '-' || r == '_' || r == '.' || r == '/' || r == ':':
		return false
	}
	return true
}
