package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, true)

	l.Log(&Event{
		Operation:    OpExecutionFallback,
		ExecutionID:  "exec_0a1b2c3d",
		TaskID:       "task_0a1b2c3d",
		ExecutorType: "ClaudePlan",
		Success:      true,
		Details:      map[string]any{"command": "npx"},
	})

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]

	tests := []struct {
		key  string
		want any
	}{
		{"audit", "true"},
		{"operation", "execution.fallback"},
		{"execution_id", "exec_0a1b2c3d"},
		{"task_id", "task_0a1b2c3d"},
		{"executor_type", "ClaudePlan"},
		{"success", true},
		{"details", `{"command":"npx"}`},
	}
	for _, tt := range tests {
		if rec[tt.key] != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, rec[tt.key], tt.want)
		}
	}
	if _, ok := rec["session_id"]; ok {
		t.Error("empty session_id should be omitted")
	}
}

func TestLogger_LogFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, true)

	l.LogFailure(OpExecutionFail, "exec_1", "task_1", "sess", errors.New("spawn failed"))

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["success"] != false || records[0]["error"] != "spawn failed" {
		t.Errorf("record = %v", records[0])
	}
}

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, false)

	l.LogSuccess(OpExecutionStart, "exec_1", "task_1", "")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	l.SetEnabled(true)
	l.LogSuccess(OpExecutionStop, "exec_1", "task_1", "")
	if len(decodeLines(t, &buf)) != 1 {
		t.Error("re-enabled logger should write")
	}
}
