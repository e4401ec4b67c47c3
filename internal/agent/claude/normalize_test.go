package claude

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/testutil"
)

func TestNormalize_DropsResultAndWrapsUnknown(t *testing.T) {
	logs := strings.Join([]string{
		`{"type":"system","subtype":"init","model":"m1","session_id":"sess-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
		`{"type":"result","result":"done"}`,
		`{"type":"mystery"}`,
	}, "\n")

	conv := Normalize(logs, testWorktree, agent.ExecutorClaude)

	if len(conv.Entries) != 3 {
		t.Fatalf("Normalize() returned %d entries, want 3: %+v", len(conv.Entries), conv.Entries)
	}

	want := []struct {
		kind    agent.EntryKind
		content string
	}{
		{agent.EntrySystemMessage, "System initialized with model: m1"},
		{agent.EntryAssistantMessage, "hi"},
		{agent.EntrySystemMessage, `Unrecognized JSON: {"type":"mystery"}`},
	}
	for i, w := range want {
		got := conv.Entries[i]
		if got.EntryType.Kind != w.kind || got.Content != w.content {
			t.Errorf("entry %d = (%s, %q), want (%s, %q)", i, got.EntryType.Kind, got.Content, w.kind, w.content)
		}
		if got.Timestamp != nil {
			t.Errorf("entry %d has timestamp %v, want nil", i, got.Timestamp)
		}
		if strings.Contains(got.Content, "done") {
			t.Errorf("entry %d leaks result payload: %q", i, got.Content)
		}
	}

	if string(conv.Entries[2].Metadata) != `{"type":"mystery"}` {
		t.Errorf("unrecognized metadata = %s", conv.Entries[2].Metadata)
	}
	if conv.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", conv.SessionID)
	}
	if conv.ExecutorKind != "Claude" {
		t.Errorf("ExecutorKind = %q, want Claude", conv.ExecutorKind)
	}
}

func TestNormalize_SessionIDFirstWins(t *testing.T) {
	logs := testutil.Stream(
		testutil.AssistantTextLine("", "no session yet"),
		testutil.SystemInitLine("first", "claude-sonnet"),
		testutil.AssistantTextLine("second", "later"),
		testutil.ResultLine("third", "ok"),
	)

	conv := Normalize(logs, testWorktree, agent.ExecutorClaude)
	if conv.SessionID != "first" {
		t.Errorf("SessionID = %q, want first", conv.SessionID)
	}
}

func TestNormalize_RawOutput(t *testing.T) {
	logs := "npm warn exec The following package was not found\n\n   \n{\"type\":\"assistant\"\nnot json {}\n"

	conv := Normalize(logs, testWorktree, agent.ExecutorClaude)

	want := []string{
		"Raw output: npm warn exec The following package was not found",
		`Raw output: {"type":"assistant"`,
		"Raw output: not json {}",
	}
	if len(conv.Entries) != len(want) {
		t.Fatalf("Normalize() returned %d entries, want %d", len(conv.Entries), len(want))
	}
	for i, w := range want {
		if conv.Entries[i].EntryType.Kind != agent.EntrySystemMessage || conv.Entries[i].Content != w {
			t.Errorf("entry %d = %+v, want system %q", i, conv.Entries[i], w)
		}
		if conv.Entries[i].Metadata != nil {
			t.Errorf("entry %d metadata = %s, want none", i, conv.Entries[i].Metadata)
		}
	}
}

func TestNormalize_TrailingDataIsRaw(t *testing.T) {
	conv := Normalize(`{"type":"mystery"} {"type":"other"}`, testWorktree, agent.ExecutorClaude)
	if len(conv.Entries) != 1 || !strings.HasPrefix(conv.Entries[0].Content, "Raw output: ") {
		t.Errorf("Normalize() = %+v, want one raw output entry", conv.Entries)
	}
}

func TestNormalize_ToolUse(t *testing.T) {
	logs := testutil.Stream(
		testutil.ToolUseLine("s", "Read", map[string]any{"file_path": "/tmp/test-worktree/src/main.go"}),
		testutil.ToolUseLine("s", "Bash", map[string]any{"command": "go test ./..."}),
		testutil.ToolUseLine("s", "Glob", map[string]any{"pattern": "*.go"}),
	)

	conv := Normalize(logs, testWorktree, agent.ExecutorClaude)
	if len(conv.Entries) != 3 {
		t.Fatalf("Normalize() returned %d entries, want 3", len(conv.Entries))
	}

	tests := []struct {
		tool    string
		action  agent.ActionType
		content string
	}{
		{"Read", agent.FileRead("src/main.go"), "`src/main.go`"},
		{"Bash", agent.CommandRun("go test ./..."), "`go test ./...`"},
		{"Glob", agent.Other("Find files: *.go"), "Find files: `*.go`"},
	}
	for i, tt := range tests {
		e := conv.Entries[i]
		if e.EntryType.Kind != agent.EntryToolUse || e.EntryType.ToolName != tt.tool {
			t.Errorf("entry %d type = %+v, want tool_use %s", i, e.EntryType, tt.tool)
			continue
		}
		if *e.EntryType.Action != tt.action {
			t.Errorf("entry %d action = %+v, want %+v", i, *e.EntryType.Action, tt.action)
		}
		if e.Content != tt.content {
			t.Errorf("entry %d content = %q, want %q", i, e.Content, tt.content)
		}

		var item map[string]any
		if err := json.Unmarshal(e.Metadata, &item); err != nil || item["name"] != tt.tool {
			t.Errorf("entry %d metadata = %s", i, e.Metadata)
		}
	}
}

func TestNormalize_ContentItems(t *testing.T) {
	logs := strings.Join([]string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"one"},{"type":"thinking","thinking":"hmm"},{"type":"text","text":"two"},{"type":"tool_use","input":{}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","content":"ok"},{"type":"text","text":"thanks"}]}}`,
		`{"type":"user","message":{"content":[]}}`,
	}, "\n")

	conv := Normalize(logs, testWorktree, agent.ExecutorClaude)

	got := make([]string, 0, len(conv.Entries))
	for _, e := range conv.Entries {
		got = append(got, string(e.EntryType.Kind)+":"+e.Content)
	}
	want := []string{
		"assistant_message:one",
		"assistant_message:two",
		"user_message:thanks",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() entries = %v, want %v", got, want)
	}
}

func TestNormalize_MissingSubstructureIsUnrecognized(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"assistant without message", `{"type":"assistant"}`},
		{"user with string content", `{"type":"user","message":{"content":"hello"}}`},
		{"system without init", `{"type":"system","subtype":"compact"}`},
		{"no type tag", `{"hello":"world"}`},
		{"array value", `[1,2,3]`},
		{"scalar value", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := Normalize(tt.line, testWorktree, agent.ExecutorClaude)
			if len(conv.Entries) != 1 {
				t.Fatalf("Normalize() returned %d entries, want 1", len(conv.Entries))
			}
			if conv.Entries[0].Content != "Unrecognized JSON: "+tt.line {
				t.Errorf("Content = %q", conv.Entries[0].Content)
			}
		})
	}
}

func TestNormalize_InitWithoutModel(t *testing.T) {
	conv := Normalize(`{"type":"system","subtype":"init"}`, testWorktree, agent.ExecutorClaudePlan)
	if len(conv.Entries) != 1 || conv.Entries[0].Content != "System initialized with model: unknown" {
		t.Errorf("Normalize() = %+v", conv.Entries)
	}
	if conv.ExecutorKind != "ClaudePlan" {
		t.Errorf("ExecutorKind = %q, want ClaudePlan", conv.ExecutorKind)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	logs := testutil.Stream(
		testutil.SystemInitLine("sess", "claude-opus"),
		testutil.UserTextLine("sess", "please fix"),
		testutil.ToolUseLine("sess", "Edit", map[string]any{"file_path": "/tmp/test-worktree/x.go"}),
		"garbage line",
		testutil.ResultLine("sess", "fixed"),
	)

	first := Normalize(logs, testWorktree, agent.ExecutorClaude)
	second := Normalize(logs, testWorktree, agent.ExecutorClaude)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize() is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestNormalize_Empty(t *testing.T) {
	conv := Normalize("", testWorktree, agent.ExecutorClaude)
	if conv.Entries == nil || len(conv.Entries) != 0 {
		t.Errorf("Entries = %#v, want empty slice", conv.Entries)
	}
	if conv.SessionID != "" {
		t.Errorf("SessionID = %q, want empty", conv.SessionID)
	}
}
