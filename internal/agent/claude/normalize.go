package claude

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/agent"
)

// Content prefixes for entries that do not come from a recognized message
const (
	rawOutputPrefix    = "Raw output: "
	unrecognizedPrefix = "Unrecognized JSON: "
	systemInitPrefix   = "System initialized with model: "
)

// lineKind is the closed set of stream-json line shapes we understand
type lineKind int

const (
	lineUnrecognized lineKind = iota
	lineAssistant
	lineUser
	lineSystemInit
	lineResult
)

// streamLine is one decoded stream-json line
type streamLine struct {
	kind    lineKind
	raw     string
	obj     map[string]any
	content []any // message.content for assistant and user lines
}

// Normalize converts Claude stream-json output into a conversation. It is
// pure and total: lines that are not JSON become raw-output system entries,
// unknown shapes become unrecognized-JSON entries, and result lines are
// dropped.
func Normalize(logs, worktree string, executorType agent.ExecutorType) *agent.NormalizedConversation {
	conv := &agent.NormalizedConversation{
		Entries:      []agent.NormalizedEntry{},
		ExecutorKind: string(executorType),
	}

	for line := range strings.Lines(logs) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		value, err := decodeValue(trimmed)
		if err != nil {
			conv.Entries = append(conv.Entries, agent.NormalizedEntry{
				EntryType: agent.SystemMessage(),
				Content:   rawOutputPrefix + trimmed,
			})
			continue
		}

		parsed := classifyLine(trimmed, value)
		if conv.SessionID == "" {
			if id, ok := stringField(parsed.obj, "session_id"); ok {
				conv.SessionID = id
			}
		}

		conv.Entries = append(conv.Entries, parsed.entries(worktree)...)
	}

	return conv
}

// classifyLine decides which shape a decoded line has
func classifyLine(raw string, value any) streamLine {
	obj, _ := value.(map[string]any)
	line := streamLine{kind: lineUnrecognized, raw: raw, obj: obj}

	typ, _ := stringField(obj, "type")
	switch typ {
	case "assistant", "user":
		message, _ := obj["message"].(map[string]any)
		content, ok := message["content"].([]any)
		if !ok {
			return line
		}
		line.content = content
		if typ == "assistant" {
			line.kind = lineAssistant
		} else {
			line.kind = lineUser
		}
	case "system":
		if subtype, _ := stringField(obj, "subtype"); subtype == "init" {
			line.kind = lineSystemInit
		}
	case "result":
		line.kind = lineResult
	}
	return line
}

// entries expands a classified line into zero or more normalized entries
func (l streamLine) entries(worktree string) []agent.NormalizedEntry {
	switch l.kind {
	case lineAssistant:
		return assistantEntries(l.content, worktree)
	case lineUser:
		return userEntries(l.content)
	case lineSystemInit:
		model, ok := stringField(l.obj, "model")
		if !ok {
			model = "unknown"
		}
		return []agent.NormalizedEntry{{
			EntryType: agent.SystemMessage(),
			Content:   systemInitPrefix + model,
			Metadata:  json.RawMessage(l.raw),
		}}
	case lineResult:
		return nil
	default:
		return []agent.NormalizedEntry{{
			EntryType: agent.SystemMessage(),
			Content:   unrecognizedPrefix + l.raw,
			Metadata:  json.RawMessage(l.raw),
		}}
	}
}

func assistantEntries(content []any, worktree string) []agent.NormalizedEntry {
	var entries []agent.NormalizedEntry
	for _, raw := range content {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		itemType, _ := stringField(item, "type")
		switch itemType {
		case "text":
			text, ok := stringField(item, "text")
			if !ok {
				continue
			}
			entries = append(entries, agent.NormalizedEntry{
				EntryType: agent.AssistantMessage(),
				Content:   text,
				Metadata:  encodeItem(item),
			})
		case "tool_use":
			name, ok := stringField(item, "name")
			if !ok {
				continue
			}
			input, _ := item["input"].(map[string]any)
			action := Classify(name, input, worktree)
			entries = append(entries, agent.NormalizedEntry{
				EntryType: agent.ToolUse(name, action),
				Content:   Summarize(name, input, action, worktree),
				Metadata:  encodeItem(item),
			})
		}
	}
	return entries
}

func userEntries(content []any) []agent.NormalizedEntry {
	var entries []agent.NormalizedEntry
	for _, raw := range content {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if itemType, _ := stringField(item, "type"); itemType != "text" {
			continue
		}
		text, ok := stringField(item, "text")
		if !ok {
			continue
		}
		entries = append(entries, agent.NormalizedEntry{
			EntryType: agent.UserMessage(),
			Content:   text,
			Metadata:  encodeItem(item),
		})
	}
	return entries
}

// decodeValue parses s as exactly one JSON value. Numbers are kept as
// json.Number so metadata round-trips without losing precision.
func decodeValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}

func encodeItem(item map[string]any) json.RawMessage {
	data, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	return data
}
