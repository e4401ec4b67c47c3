// Package agent provides the shared vocabulary for coding-agent executors.
//
// executor.go - Executor interface definition
//
// This file contains:
// - Executor interface implemented by every agent backend
// - ExecutorType labels recorded alongside normalized conversations
// - Variant for distinguishing new-task and resume launches

package agent

import (
	"context"

	"github.com/HyphaGroup/claudexec/internal/process"
)

// ExecutorType labels which executor produced a conversation
type ExecutorType string

const (
	ExecutorClaude     ExecutorType = "Claude"
	ExecutorClaudePlan ExecutorType = "ClaudePlan"
)

// Variant distinguishes a fresh task launch from a session resume
type Variant string

const (
	VariantNew    Variant = "new"
	VariantResume Variant = "resume"
)

// Executor launches an agent for a task and normalizes what it printed
type Executor interface {
	// Spawn starts the agent in worktree. The caller owns the returned
	// child: it must drain stdout/stderr and call Wait.
	Spawn(ctx context.Context, taskID, worktree string) (*process.Child, error)

	// NormalizeLogs converts captured stdout into a conversation. It never
	// fails and may be called repeatedly as output accumulates.
	NormalizeLogs(logs, worktree string) *NormalizedConversation

	// Type returns the label recorded with normalized conversations
	Type() ExecutorType
}
