package task

import (
	"time"
)

// Task is a unit of work an executor is launched for
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"` // Optional
	CreatedAt   time.Time `json:"created_at"`
}

// ExecutionStatus is the lifecycle state of an execution process
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed" // Exited with code 0
	StatusFailed    ExecutionStatus = "failed"    // Spawn failure or non-zero exit
	StatusKilled    ExecutionStatus = "killed"    // Stopped by the supervisor
)

// Finished reports whether the status is terminal
func (s ExecutionStatus) Finished() bool {
	return s != StatusRunning
}

// Execution is one launched executor process and the output it produced
type Execution struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"task_id"`
	ExecutorType string          `json:"executor_type"`
	Variant      string          `json:"variant"` // new or resume
	WorkDir      string          `json:"work_dir"`
	Status       ExecutionStatus `json:"status"`
	SessionID    string          `json:"session_id,omitempty"`
	Prompt       string          `json:"prompt,omitempty"` // Follow-up prompt; empty for new tasks
	ExitCode     *int            `json:"exit_code,omitempty"`
	Stdout       string          `json:"stdout,omitempty"`
	Stderr       string          `json:"stderr,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Stream selects which captured output an append targets
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// ListFilter contains optional filters for listing executions
type ListFilter struct {
	TaskID string
	Status ExecutionStatus
	Limit  int
}
