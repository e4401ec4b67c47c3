package claude

import (
	"context"
	"errors"
	"fmt"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/process"
	"github.com/HyphaGroup/claudexec/internal/task"
)

// TaskLookup supplies the task record a new-task launch is built from
type TaskLookup interface {
	GetTask(ctx context.Context, id string) (*task.Task, error)
}

// Executor launches the CLI for a new task
type Executor struct {
	launcher *Launcher
	tasks    TaskLookup
	mode     Mode
}

var _ agent.Executor = (*Executor)(nil)

// NewExecutor creates a new-task executor in mode
func NewExecutor(launcher *Launcher, tasks TaskLookup, mode Mode) *Executor {
	return &Executor{launcher: launcher, tasks: tasks, mode: mode}
}

// Spawn looks up the task, builds its prompt and launches the CLI. A
// missing task returns agent.ErrTaskNotFound without spawning anything.
func (e *Executor) Spawn(ctx context.Context, taskID, worktree string) (*process.Child, error) {
	t, err := e.tasks.GetTask(ctx, taskID)
	if errors.Is(err, task.ErrTaskNotFound) {
		return nil, fmt.Errorf("%w: %s", agent.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	return e.launcher.Launch(ctx, LaunchRequest{
		Mode:     e.mode,
		Worktree: worktree,
		Prompt:   TaskPrompt(t),
		TaskID:   taskID,
	})
}

// NormalizeLogs normalizes captured stdout
func (e *Executor) NormalizeLogs(logs, worktree string) *agent.NormalizedConversation {
	return Normalize(logs, worktree, e.Type())
}

// Type returns Claude or ClaudePlan depending on mode
func (e *Executor) Type() agent.ExecutorType {
	return e.mode.ExecutorType()
}

// FollowupExecutor resumes an existing session with a caller-supplied prompt
type FollowupExecutor struct {
	launcher  *Launcher
	sessionID string
	prompt    string
	mode      Mode
}

var _ agent.Executor = (*FollowupExecutor)(nil)

// NewFollowupExecutor creates an executor that resumes sessionID
func NewFollowupExecutor(launcher *Launcher, sessionID, prompt string, mode Mode) *FollowupExecutor {
	return &FollowupExecutor{launcher: launcher, sessionID: sessionID, prompt: prompt, mode: mode}
}

// Spawn launches the CLI with the resume flag. taskID is only used to
// annotate errors.
func (f *FollowupExecutor) Spawn(ctx context.Context, taskID, worktree string) (*process.Child, error) {
	return f.launcher.Launch(ctx, LaunchRequest{
		Mode:      f.mode,
		Worktree:  worktree,
		Prompt:    f.prompt,
		TaskID:    taskID,
		SessionID: f.sessionID,
	})
}

// NormalizeLogs normalizes captured stdout and records the followup prompt
func (f *FollowupExecutor) NormalizeLogs(logs, worktree string) *agent.NormalizedConversation {
	conv := Normalize(logs, worktree, f.Type())
	conv.Prompt = f.prompt
	return conv
}

// Type returns Claude or ClaudePlan depending on mode
func (f *FollowupExecutor) Type() agent.ExecutorType {
	return f.mode.ExecutorType()
}
