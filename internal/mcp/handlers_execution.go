package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/validation"
)

type ExecutionGetParams struct {
	ExecutionID   string `json:"execution_id" description:"Execution to inspect"`
	IncludeOutput bool   `json:"include_output,omitempty" description:"Include raw stdout and stderr"`
}

// ExecutionView is an execution with its normalized conversation
type ExecutionView struct {
	ExecutionID  string                        `json:"execution_id"`
	TaskID       string                        `json:"task_id,omitempty"`
	ExecutorType string                        `json:"executor_type"`
	Variant      string                        `json:"variant"`
	Status       string                        `json:"status"`
	SessionID    string                        `json:"session_id,omitempty"`
	ExitCode     *int                          `json:"exit_code,omitempty"`
	Error        string                        `json:"error,omitempty"`
	StartedAt    time.Time                     `json:"started_at"`
	CompletedAt  *time.Time                    `json:"completed_at,omitempty"`
	Conversation *agent.NormalizedConversation `json:"conversation"`
	Stdout       string                        `json:"stdout,omitempty"`
	Stderr       string                        `json:"stderr,omitempty"`
}

func (s *Server) handleExecutionGet(ctx context.Context, request *mcp.CallToolRequest, params *ExecutionGetParams) (*mcp.CallToolResult, any, error) {
	if err := validation.ValidateExecutionID(params.ExecutionID); err != nil {
		return nil, nil, err
	}

	exec, err := s.store.GetExecution(ctx, params.ExecutionID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.supervisor.Normalize(ctx, params.ExecutionID)
	if err != nil {
		return nil, nil, err
	}

	view := &ExecutionView{
		ExecutionID:  exec.ID,
		TaskID:       exec.TaskID,
		ExecutorType: exec.ExecutorType,
		Variant:      exec.Variant,
		Status:       string(exec.Status),
		SessionID:    exec.SessionID,
		ExitCode:     exec.ExitCode,
		Error:        exec.Error,
		StartedAt:    exec.StartedAt,
		CompletedAt:  exec.CompletedAt,
		Conversation: conv,
	}
	if params.IncludeOutput {
		view.Stdout = exec.Stdout
		view.Stderr = exec.Stderr
	}
	return nil, view, nil
}

type ExecutionStopParams struct {
	ExecutionID string `json:"execution_id" description:"Execution to stop"`
}

func (s *Server) handleExecutionStop(ctx context.Context, request *mcp.CallToolRequest, params *ExecutionStopParams) (*mcp.CallToolResult, any, error) {
	if err := validation.ValidateExecutionID(params.ExecutionID); err != nil {
		return nil, nil, err
	}
	if err := s.supervisor.Stop(params.ExecutionID); err != nil {
		return nil, nil, err
	}
	return NewTextResult("Execution " + params.ExecutionID + " stopped."), nil, nil
}

type CommandResolveParams struct {
	Plan bool `json:"plan,omitempty" description:"Resolve the plan-mode command"`
}

// CommandResolveResult is the command a launch would start with
type CommandResolveResult struct {
	Command    string `json:"command"`
	IsFallback bool   `json:"is_fallback"`
	Source     string `json:"source"`
}

func (s *Server) handleCommandResolve(ctx context.Context, request *mcp.CallToolRequest, params *CommandResolveParams) (*mcp.CallToolResult, any, error) {
	resolved := s.resolver.Resolve(ctx, modeFor(params.Plan))
	return nil, &CommandResolveResult{
		Command:    resolved.Command,
		IsFallback: resolved.IsFallback,
		Source:     string(resolved.Source),
	}, nil
}

type LogsNormalizeParams struct {
	Logs     string `json:"logs"`
	Worktree string `json:"worktree,omitempty"`
	Plan     bool   `json:"plan,omitempty"`
}

func (s *Server) handleLogsNormalize(ctx context.Context, request *mcp.CallToolRequest, params *LogsNormalizeParams) (*mcp.CallToolResult, any, error) {
	return nil, claude.Normalize(params.Logs, params.Worktree, modeFor(params.Plan).ExecutorType()), nil
}
