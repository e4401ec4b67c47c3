package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTaskNotFound aborts a new-task launch before any process is spawned
var ErrTaskNotFound = errors.New("task not found")

// SpawnPhase names the step of a launch that failed
type SpawnPhase string

const (
	PhaseSpawn      SpawnPhase = "spawn"
	PhaseStdinWrite SpawnPhase = "stdin_write"
	PhaseStdinClose SpawnPhase = "stdin_close"
)

// SpawnError describes a failed launch attempt. Stdin phases mean a child
// process existed when the failure happened.
type SpawnError struct {
	Executor  string
	Command   string
	TaskID    string
	SessionID string
	Context   string
	Phase     SpawnPhase
	Err       error
}

func (e *SpawnError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s executor: %s failed", e.Executor, e.Phase)
	if e.Context != "" {
		fmt.Fprintf(&b, " (%s)", e.Context)
	}
	fmt.Fprintf(&b, " for command %q", e.Command)
	if e.TaskID != "" {
		fmt.Fprintf(&b, " task=%s", e.TaskID)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " session=%s", e.SessionID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// FallbackError reports that both the primary invocation and the universal
// fallback failed. Err is the fallback attempt's error.
type FallbackError struct {
	Primary error
	Err     error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback launch failed: %v", e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

// IsStdinError reports whether err came from writing or closing the
// child's stdin
func IsStdinError(err error) bool {
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		return false
	}
	return spawnErr.Phase == PhaseStdinWrite || spawnErr.Phase == PhaseStdinClose
}

// IsFallbackExhausted reports whether err means every invocation failed
func IsFallbackExhausted(err error) bool {
	var fallbackErr *FallbackError
	return errors.As(err, &fallbackErr)
}
