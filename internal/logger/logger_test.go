package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWithContextAttachesIDs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true, slog.LevelDebug)

	ctx := context.Background()
	ctx = WithValue(ctx, ContextKeyTaskID, "task_1")
	ctx = WithValue(ctx, ContextKeyExecutionID, "exec_1")
	ctx = WithValue(ctx, ContextKeySessionID, "")

	DebugContext(ctx, "launching", "mode", "plan")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if record["task_id"] != "task_1" || record["execution_id"] != "exec_1" {
		t.Errorf("record = %v, want task and execution ids", record)
	}
	if _, ok := record["session_id"]; ok {
		t.Error("empty session id should not be attached")
	}
	if record["mode"] != "plan" || record["msg"] != "launching" {
		t.Errorf("record = %v", record)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false, slog.LevelInfo)

	DebugContext(context.Background(), "hidden")
	InfoContext(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message missing")
	}
}

func TestInitWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, false, slog.LevelInfo); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	WarnContext(context.Background(), "written to file")
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := filepath.Join(dir, "claudexec-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestValue(t *testing.T) {
	ctx := WithValue(context.Background(), ContextKeyExecutionID, "exec_1")
	ctx = WithValue(ctx, ContextKeyTaskID, "")

	if got := Value(ctx, ContextKeyExecutionID); got != "exec_1" {
		t.Errorf("Value(execution_id) = %q, want exec_1", got)
	}
	if got := Value(ctx, ContextKeyTaskID); got != "" {
		t.Errorf("Value(task_id) = %q, want empty", got)
	}
}
