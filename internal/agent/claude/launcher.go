package claude

import (
	"context"
	"fmt"
	"io"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/metrics"
	"github.com/HyphaGroup/claudexec/internal/process"
)

// childEnv is added to the inherited environment of every launch
var childEnv = []string{"NODE_NO_WARNINGS=1"}

// LaunchRequest describes one launch of the CLI
type LaunchRequest struct {
	Mode     Mode
	Worktree string
	Prompt   string

	// TaskID and SessionID are used for error context. A non-empty
	// SessionID also resumes that session.
	TaskID    string
	SessionID string
}

func (r LaunchRequest) variant() agent.Variant {
	if r.SessionID != "" {
		return agent.VariantResume
	}
	return agent.VariantNew
}

// FallbackHook is told about a failed primary attempt just before the npx
// fallback is tried
type FallbackHook func(ctx context.Context, primary error)

// Launcher spawns the resolved command and feeds it the prompt. When the
// preferred command fails it retries once with the npx fallback.
type Launcher struct {
	resolver   *Resolver
	spawner    process.Spawner
	watch      PlanWatch
	onFallback FallbackHook
}

// NewLauncher creates a launcher. An empty watch defaults to
// PlanWatchInProcess.
func NewLauncher(resolver *Resolver, spawner process.Spawner, watch PlanWatch) *Launcher {
	if watch == "" {
		watch = PlanWatchInProcess
	}
	return &Launcher{resolver: resolver, spawner: spawner, watch: watch}
}

// OnFallback registers hook to run before each fallback attempt
func (l *Launcher) OnFallback(hook FallbackHook) {
	l.onFallback = hook
}

// Launch starts the CLI for req. Errors are *agent.SpawnError, or
// *agent.FallbackError when both the primary and fallback attempts failed.
func (l *Launcher) Launch(ctx context.Context, req LaunchRequest) (*process.Child, error) {
	executor := string(req.Mode.ExecutorType())
	variant := string(req.variant())
	log := logger.WithContext(ctx).With("executor", executor, "variant", variant)

	primary := l.resolver.Resolve(ctx, req.Mode)
	child, err := l.attempt(ctx, req, primary)
	if err == nil {
		metrics.RecordLaunch(executor, variant, "primary")
		return child, nil
	}

	if primary.IsFallback {
		metrics.RecordLaunch(executor, variant, "failed")
		return nil, err
	}

	log.Warn("primary command failed, attempting npx fallback", "error", err)
	metrics.RecordFallbackAttempt(executor)
	if l.onFallback != nil {
		l.onFallback(ctx, err)
	}

	child, fallbackErr := l.attempt(ctx, req, l.resolver.Fallback(req.Mode))
	if fallbackErr != nil {
		log.Error("fallback command also failed", "error", fallbackErr, "primary_error", err)
		metrics.RecordLaunch(executor, variant, "failed")
		return nil, &agent.FallbackError{Primary: err, Err: fallbackErr}
	}

	metrics.RecordLaunch(executor, variant, "fallback")
	return child, nil
}

// Command returns the final shell command a launch of req would run with
// resolved
func (l *Launcher) Command(req LaunchRequest, resolved ResolvedCommand) string {
	command := resolved.Command
	if req.SessionID != "" {
		command = WithResume(command, req.SessionID)
	}
	if req.Mode == ModePlan && l.watch == PlanWatchScript {
		command = WrapCommand(command)
	}
	return command
}

// attempt runs one full launch: spawn, then write and close stdin. A child
// whose stdin fails is killed before the error is returned.
func (l *Launcher) attempt(ctx context.Context, req LaunchRequest, resolved ResolvedCommand) (*process.Child, error) {
	command := l.Command(req, resolved)
	executor := string(req.Mode.ExecutorType())

	spawnErr := func(phase agent.SpawnPhase, detail string, err error) error {
		return &agent.SpawnError{
			Executor:  executor,
			Command:   command,
			TaskID:    req.TaskID,
			SessionID: req.SessionID,
			Context:   detail,
			Phase:     phase,
			Err:       err,
		}
	}

	child, err := l.spawner.Spawn(ctx, process.Spec{
		Command: command,
		Dir:     req.Worktree,
		Env:     childEnv,
	})
	if err != nil {
		return nil, spawnErr(agent.PhaseSpawn, l.describe(req, executor), err)
	}

	if req.Mode == ModePlan && l.watch == PlanWatchInProcess {
		child.TerminateOn(PlanSentinel)
	}

	logger.DebugContext(ctx, "writing prompt to claude stdin",
		"task_id", req.TaskID, "session_id", req.SessionID, "prompt_bytes", len(req.Prompt))

	if _, err := io.WriteString(child.Stdin, req.Prompt); err != nil {
		discard(child)
		return nil, spawnErr(agent.PhaseStdinWrite, fmt.Sprintf("failed to write prompt to %s CLI stdin", executor), err)
	}
	if err := child.Stdin.Close(); err != nil {
		discard(child)
		return nil, spawnErr(agent.PhaseStdinClose, fmt.Sprintf("failed to close %s CLI stdin", executor), err)
	}

	return child, nil
}

func (l *Launcher) describe(req LaunchRequest, executor string) string {
	if req.SessionID != "" {
		return fmt.Sprintf("%s CLI followup execution for session %s", executor, req.SessionID)
	}
	return fmt.Sprintf("%s CLI execution for new task", executor)
}

// discard kills a child that will not be handed to the caller and reaps it
func discard(child *process.Child) {
	_ = child.Kill()
	go func() {
		_ = child.Close()
		_, _ = child.Wait()
	}()
}
