// Package agent provides the shared vocabulary for coding-agent executors.
//
// types.go - Normalized conversation types
//
// This file contains:
// - EntryKind and EntryType for classifying normalized entries
// - ActionKind and ActionType for classifying tool invocations
// - NormalizedEntry and NormalizedConversation
//
// Every executor converts its native log format into these types so that
// storage and display code never has to know which agent produced a log.

package agent

import (
	"encoding/json"
	"time"
)

// EntryKind represents the kind of a normalized entry
type EntryKind string

const (
	EntryUserMessage      EntryKind = "user_message"
	EntryAssistantMessage EntryKind = "assistant_message"
	EntrySystemMessage    EntryKind = "system_message"
	EntryToolUse          EntryKind = "tool_use"
)

// EntryType is the tagged variant describing a normalized entry.
// ToolName and Action are only set when Kind is EntryToolUse.
type EntryType struct {
	Kind     EntryKind   `json:"type"`
	ToolName string      `json:"tool_name,omitempty"`
	Action   *ActionType `json:"action_type,omitempty"`
}

// UserMessage returns the user message entry type
func UserMessage() EntryType { return EntryType{Kind: EntryUserMessage} }

// AssistantMessage returns the assistant message entry type
func AssistantMessage() EntryType { return EntryType{Kind: EntryAssistantMessage} }

// SystemMessage returns the system message entry type
func SystemMessage() EntryType { return EntryType{Kind: EntrySystemMessage} }

// ToolUse returns a tool use entry type for the given tool and action
func ToolUse(toolName string, action ActionType) EntryType {
	return EntryType{Kind: EntryToolUse, ToolName: toolName, Action: &action}
}

// ActionKind represents the semantic kind of a tool invocation
type ActionKind string

const (
	ActionFileRead         ActionKind = "file_read"
	ActionFileWrite        ActionKind = "file_write"
	ActionCommandRun       ActionKind = "command_run"
	ActionSearch           ActionKind = "search"
	ActionWebFetch         ActionKind = "web_fetch"
	ActionTaskCreate       ActionKind = "task_create"
	ActionPlanPresentation ActionKind = "plan_presentation"
	ActionOther            ActionKind = "other"
)

// ActionType is the tagged variant describing what a tool invocation does.
// Exactly one payload field is populated, selected by Kind.
type ActionType struct {
	Kind        ActionKind `json:"action"`
	Path        string     `json:"path,omitempty"`
	Command     string     `json:"command,omitempty"`
	Query       string     `json:"query,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
	Plan        string     `json:"plan,omitempty"`
}

// Constructors for each ActionType variant.

func FileRead(path string) ActionType { return ActionType{Kind: ActionFileRead, Path: path} }

func FileWrite(path string) ActionType { return ActionType{Kind: ActionFileWrite, Path: path} }

func CommandRun(cmd string) ActionType { return ActionType{Kind: ActionCommandRun, Command: cmd} }

func Search(query string) ActionType { return ActionType{Kind: ActionSearch, Query: query} }

func WebFetch(url string) ActionType { return ActionType{Kind: ActionWebFetch, URL: url} }

func TaskCreate(description string) ActionType {
	return ActionType{Kind: ActionTaskCreate, Description: description}
}

func PlanPresentation(plan string) ActionType {
	return ActionType{Kind: ActionPlanPresentation, Plan: plan}
}

func Other(description string) ActionType {
	return ActionType{Kind: ActionOther, Description: description}
}

// Value returns the payload carried by the action, whichever field it is
func (a ActionType) Value() string {
	switch a.Kind {
	case ActionFileRead, ActionFileWrite:
		return a.Path
	case ActionCommandRun:
		return a.Command
	case ActionSearch:
		return a.Query
	case ActionWebFetch:
		return a.URL
	case ActionPlanPresentation:
		return a.Plan
	default:
		return a.Description
	}
}

// NormalizedEntry is one display-ready unit derived from an agent log
type NormalizedEntry struct {
	Timestamp *time.Time      `json:"timestamp"`
	EntryType EntryType       `json:"entry_type"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// NormalizedConversation is the result of normalizing one captured log.
// It is built fresh on every call and never mutated afterwards.
type NormalizedConversation struct {
	Entries      []NormalizedEntry `json:"entries"`
	SessionID    string            `json:"session_id,omitempty"`
	ExecutorKind string            `json:"executor_type"`
	Prompt       string            `json:"prompt,omitempty"`
	Summary      string            `json:"summary,omitempty"`
}

// CountByKind tallies entries per kind
func (c *NormalizedConversation) CountByKind() map[EntryKind]int {
	counts := make(map[EntryKind]int)
	for _, e := range c.Entries {
		counts[e.EntryType.Kind]++
	}
	return counts
}
