package testutil

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HyphaGroup/claudexec/internal/task"
)

// TaskOption is a function that modifies a Task for testing.
type TaskOption func(*task.Task)

// NewTestTask creates a test task with sensible defaults. The task is not
// persisted.
func NewTestTask(t *testing.T, opts ...TaskOption) *task.Task {
	t.Helper()

	tk := &task.Task{
		ID:        "task_" + uuid.New().String()[:8],
		ProjectID: "proj-" + uuid.New().String()[:8],
		Title:     "Test task for " + t.Name(),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(tk)
	}

	return tk
}

// WithTaskID sets a specific ID for the test task.
func WithTaskID(id string) TaskOption {
	return func(tk *task.Task) {
		tk.ID = id
	}
}

// WithProjectID sets the owning project.
func WithProjectID(id string) TaskOption {
	return func(tk *task.Task) {
		tk.ProjectID = id
	}
}

// WithTitle sets the task title.
func WithTitle(title string) TaskOption {
	return func(tk *task.Task) {
		tk.Title = title
	}
}

// WithDescription sets the task description.
func WithDescription(desc string) TaskOption {
	return func(tk *task.Task) {
		tk.Description = desc
	}
}

// Stream joins stream-json lines the way the CLI prints them.
func Stream(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// SystemInitLine returns the init line the CLI prints first.
func SystemInitLine(sessionID, model string) string {
	return mustLine(map[string]any{
		"type":       "system",
		"subtype":    "init",
		"session_id": sessionID,
		"model":      model,
	})
}

// AssistantTextLine returns an assistant message with one text item.
func AssistantTextLine(sessionID, text string) string {
	return messageLine("assistant", sessionID, map[string]any{"type": "text", "text": text})
}

// UserTextLine returns a user message with one text item.
func UserTextLine(sessionID, text string) string {
	return messageLine("user", sessionID, map[string]any{"type": "text", "text": text})
}

// ToolUseLine returns an assistant message with one tool_use item.
func ToolUseLine(sessionID, name string, input map[string]any) string {
	return messageLine("assistant", sessionID, map[string]any{
		"type":  "tool_use",
		"id":    "toolu_" + uuid.New().String()[:8],
		"name":  name,
		"input": input,
	})
}

// ResultLine returns the final result line.
func ResultLine(sessionID, result string) string {
	return mustLine(map[string]any{
		"type":       "result",
		"subtype":    "success",
		"is_error":   false,
		"result":     result,
		"session_id": sessionID,
	})
}

func messageLine(role, sessionID string, items ...map[string]any) string {
	content := make([]any, 0, len(items))
	for _, item := range items {
		content = append(content, item)
	}
	line := map[string]any{
		"type":    role,
		"message": map[string]any{"role": role, "content": content},
	}
	if sessionID != "" {
		line["session_id"] = sessionID
	}
	return mustLine(line)
}

func mustLine(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
