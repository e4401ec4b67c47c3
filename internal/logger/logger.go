// Package logger provides structured logging for claudexec.
//
// logger.go - slog setup and context-scoped loggers
//
// This file contains:
// - Init/Close for the process-wide handler (stdout + daily log file)
// - Slog and WithContext accessors
// - Context keys for request, task, session and execution IDs

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	slogger *slog.Logger
	logFile *os.File
)

// Init installs a slog handler writing to stdout and
// <logDir>/claudexec-YYYY-MM-DD.log. If jsonOutput is true, logs are
// formatted as JSON.
func Init(logDir string, jsonOutput bool, level slog.Level) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := "claudexec-" + time.Now().Format("2006-01-02") + ".log"
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	SetOutput(io.MultiWriter(os.Stdout, file), jsonOutput, level)

	mu.Lock()
	logFile = file
	mu.Unlock()
	return nil
}

// SetOutput installs a handler writing to w without a log file
func SetOutput(w io.Writer, jsonOutput bool, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	mu.Lock()
	slogger = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// Close closes the log file
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Slog returns the logger, falling back to slog.Default before Init
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if slogger == nil {
		return slog.Default()
	}
	return slogger
}

// Context keys for structured logging
type contextKey string

const (
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeyTaskID      contextKey = "task_id"
	ContextKeySessionID   contextKey = "session_id"
	ContextKeyExecutionID contextKey = "execution_id"
)

var contextKeys = []contextKey{
	ContextKeyRequestID,
	ContextKeyTaskID,
	ContextKeySessionID,
	ContextKeyExecutionID,
}

// WithValue returns a context carrying a log field
func WithValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

// Value returns the log field stored under key, or ""
func Value(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}

// WithContext returns a logger with the IDs found in ctx attached
func WithContext(ctx context.Context) *slog.Logger {
	logger := Slog()
	if ctx == nil {
		return logger
	}
	for _, key := range contextKeys {
		if value := ctx.Value(key); value != nil {
			logger = logger.With(string(key), value)
		}
	}
	return logger
}

// InfoContext logs an info message with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// ErrorContext logs an error with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

// WarnContext logs a warning with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// DebugContext logs debug info with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
