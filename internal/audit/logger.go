// Package audit records execution lifecycle events as JSON log lines.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Operation represents the type of auditable operation
type Operation string

const (
	OpExecutionStart    Operation = "execution.start"
	OpExecutionFallback Operation = "execution.fallback"
	OpExecutionFail     Operation = "execution.fail"
	OpExecutionStop     Operation = "execution.stop"
)

// Event represents an audit log entry
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	Operation    Operation      `json:"operation"`
	ExecutionID  string         `json:"execution_id,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	ExecutorType string         `json:"executor_type,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// Logger handles audit logging
type Logger struct {
	logger  *slog.Logger
	enabled bool
	mu      sync.RWMutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default audit logger
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(true)
	})
	return defaultLogger
}

// New creates a new audit logger writing to stdout
func New(enabled bool) *Logger {
	return NewWithWriter(os.Stdout, enabled)
}

// NewWithWriter creates an audit logger writing JSON lines to w
func NewWithWriter(w io.Writer, enabled bool) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{
		logger:  slog.New(handler),
		enabled: enabled,
	}
}

// SetEnabled enables or disables audit logging
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Log records an audit event
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	enabled := l.enabled
	l.mu.RUnlock()

	if !enabled {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []any{
		slog.String("audit", "true"),
		slog.String("operation", string(event.Operation)),
		slog.Bool("success", event.Success),
	}

	if event.ExecutionID != "" {
		attrs = append(attrs, slog.String("execution_id", event.ExecutionID))
	}
	if event.TaskID != "" {
		attrs = append(attrs, slog.String("task_id", event.TaskID))
	}
	if event.ProjectID != "" {
		attrs = append(attrs, slog.String("project_id", event.ProjectID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.ExecutorType != "" {
		attrs = append(attrs, slog.String("executor_type", event.ExecutorType))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Details != nil {
		detailsJSON, _ := json.Marshal(event.Details)
		attrs = append(attrs, slog.String("details", string(detailsJSON)))
	}

	l.logger.Info("AUDIT", attrs...)
}

// LogSuccess records a successful operation
func (l *Logger) LogSuccess(op Operation, executionID, taskID, sessionID string) {
	l.Log(&Event{
		Operation:   op,
		ExecutionID: executionID,
		TaskID:      taskID,
		SessionID:   sessionID,
		Success:     true,
	})
}

// LogFailure records a failed operation
func (l *Logger) LogFailure(op Operation, executionID, taskID, sessionID string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	l.Log(&Event{
		Operation:   op,
		ExecutionID: executionID,
		TaskID:      taskID,
		SessionID:   sessionID,
		Success:     false,
		Error:       errMsg,
	})
}
