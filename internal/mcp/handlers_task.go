package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/execution"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/task"
	"github.com/HyphaGroup/claudexec/internal/validation"
)

type TaskCreateParams struct {
	ProjectID   string `json:"project_id" description:"Project the task belongs to"`
	Title       string `json:"title" description:"Short task title"`
	Description string `json:"description,omitempty" description:"Longer task description"`
}

type TaskCreateResult struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
}

func (s *Server) handleTaskCreate(ctx context.Context, request *mcp.CallToolRequest, params *TaskCreateParams) (*mcp.CallToolResult, any, error) {
	if err := validation.ValidateProjectID(params.ProjectID); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateTitle(params.Title); err != nil {
		return nil, nil, err
	}

	t := &task.Task{
		ProjectID:   params.ProjectID,
		Title:       params.Title,
		Description: params.Description,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, nil, err
	}

	logger.InfoContext(ctx, "task created", "task_id", t.ID, "project_id", t.ProjectID)
	return nil, &TaskCreateResult{TaskID: t.ID, ProjectID: t.ProjectID}, nil
}

type TaskLaunchParams struct {
	TaskID   string `json:"task_id" description:"Task to launch claude for"`
	Worktree string `json:"worktree" description:"Absolute path of the directory claude works in"`
	Plan     bool   `json:"plan,omitempty" description:"Start in plan mode"`
}

// LaunchResult identifies the execution a launch started
type LaunchResult struct {
	ExecutionID  string `json:"execution_id"`
	Status       string `json:"status"`
	ExecutorType string `json:"executor_type"`
	Variant      string `json:"variant"`
}

func (s *Server) handleTaskLaunch(ctx context.Context, request *mcp.CallToolRequest, params *TaskLaunchParams) (*mcp.CallToolResult, any, error) {
	if err := validation.ValidateTaskID(params.TaskID); err != nil {
		return nil, nil, err
	}
	worktree, err := validation.ValidateWorktree(params.Worktree)
	if err != nil {
		return nil, nil, err
	}

	t, err := s.store.GetTask(ctx, params.TaskID)
	if err != nil {
		return nil, nil, err
	}

	mode := modeFor(params.Plan)
	ctx = logger.WithValue(ctx, logger.ContextKeyTaskID, t.ID)
	exec, err := s.supervisor.Start(ctx, execution.StartRequest{
		Executor:  claude.NewExecutor(s.launcher, s.store, mode),
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		WorkDir:   worktree,
		Variant:   agent.VariantNew,
	})
	if err != nil {
		return nil, nil, launchError(ctx, exec, err, "task_launch")
	}
	return nil, launchResult(exec), nil
}

type SessionResumeParams struct {
	SessionID string `json:"session_id" description:"Claude session to continue"`
	Prompt    string `json:"prompt" description:"Follow-up prompt"`
	Worktree  string `json:"worktree" description:"Absolute path of the directory claude works in"`
	TaskID    string `json:"task_id,omitempty" description:"Task the follow-up belongs to"`
	Plan      bool   `json:"plan,omitempty" description:"Continue in plan mode"`
}

func (s *Server) handleSessionResume(ctx context.Context, request *mcp.CallToolRequest, params *SessionResumeParams) (*mcp.CallToolResult, any, error) {
	if err := validation.ValidateSessionID(params.SessionID); err != nil {
		return nil, nil, err
	}
	if params.Prompt == "" {
		return nil, nil, fmt.Errorf("prompt is required")
	}
	worktree, err := validation.ValidateWorktree(params.Worktree)
	if err != nil {
		return nil, nil, err
	}

	// Follow-ups without a task are throttled per session.
	throttleKey := "session:" + params.SessionID
	if params.TaskID != "" {
		if err := validation.ValidateTaskID(params.TaskID); err != nil {
			return nil, nil, err
		}
		t, err := s.store.GetTask(ctx, params.TaskID)
		if err != nil {
			return nil, nil, err
		}
		throttleKey = t.ProjectID
	}

	mode := modeFor(params.Plan)
	ctx = logger.WithValue(ctx, logger.ContextKeySessionID, params.SessionID)
	exec, err := s.supervisor.Start(ctx, execution.StartRequest{
		Executor:  claude.NewFollowupExecutor(s.launcher, params.SessionID, params.Prompt, mode),
		TaskID:    params.TaskID,
		ProjectID: throttleKey,
		WorkDir:   worktree,
		Variant:   agent.VariantResume,
		SessionID: params.SessionID,
		Prompt:    params.Prompt,
	})
	if err != nil {
		return nil, nil, launchError(ctx, exec, err, "session_resume")
	}
	return nil, launchResult(exec), nil
}

func modeFor(plan bool) claude.Mode {
	if plan {
		return claude.ModePlan
	}
	return claude.ModeDefault
}

func launchResult(exec *task.Execution) *LaunchResult {
	return &LaunchResult{
		ExecutionID:  exec.ID,
		Status:       string(exec.Status),
		ExecutorType: exec.ExecutorType,
		Variant:      exec.Variant,
	}
}

// launchError names the failed execution so the caller can inspect it
func launchError(ctx context.Context, exec *task.Execution, err error, tool string) error {
	if errors.Is(err, agent.ErrTaskNotFound) || exec == nil {
		return err
	}
	return fmt.Errorf("execution %s: %w", exec.ID, SanitizeError(ctx, err, tool))
}
