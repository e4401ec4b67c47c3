package claude

import (
	"fmt"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/agent"
)

// Classify maps a tool invocation to the action it performs. Tool names are
// matched case-insensitively; anything unknown becomes an Other action.
func Classify(toolName string, input map[string]any, worktree string) agent.ActionType {
	switch strings.ToLower(toolName) {
	case "read":
		if p, ok := stringField(input, "file_path"); ok {
			return agent.FileRead(MakeRelative(p, worktree))
		}
		return agent.Other("File read operation")
	case "edit", "write", "multiedit":
		if p, ok := stringField(input, "file_path"); ok {
			return agent.FileWrite(MakeRelative(p, worktree))
		}
		if p, ok := stringField(input, "path"); ok {
			return agent.FileWrite(MakeRelative(p, worktree))
		}
		return agent.Other("File write operation")
	case "bash":
		if cmd, ok := stringField(input, "command"); ok {
			return agent.CommandRun(cmd)
		}
		return agent.Other("Command execution")
	case "grep":
		if pattern, ok := stringField(input, "pattern"); ok {
			return agent.Search(pattern)
		}
		return agent.Other("Search operation")
	case "glob":
		// Glob maps to Other, not Search.
		if pattern, ok := stringField(input, "pattern"); ok {
			return agent.Other("Find files: " + pattern)
		}
		return agent.Other("File pattern search")
	case "webfetch":
		if url, ok := stringField(input, "url"); ok {
			return agent.WebFetch(url)
		}
		return agent.Other("Web fetch operation")
	case "task":
		if desc, ok := stringField(input, "description"); ok {
			return agent.TaskCreate(desc)
		}
		if prompt, ok := stringField(input, "prompt"); ok {
			return agent.TaskCreate(prompt)
		}
		return agent.Other("Task creation")
	case "exit_plan_mode":
		if plan, ok := stringField(input, "plan"); ok {
			return agent.PlanPresentation(plan)
		}
		return agent.Other("Plan presentation")
	default:
		return agent.Other("Tool: " + toolName)
	}
}

// Summarize renders the short content string shown for a tool use entry
func Summarize(toolName string, input map[string]any, action agent.ActionType, worktree string) string {
	switch action.Kind {
	case agent.ActionFileRead, agent.ActionFileWrite, agent.ActionCommandRun,
		agent.ActionSearch, agent.ActionWebFetch:
		return "`" + action.Value() + "`"
	case agent.ActionTaskCreate, agent.ActionPlanPresentation:
		return action.Value()
	}

	switch strings.ToLower(toolName) {
	case "todoread", "todowrite":
		return summarizeTodos(input)
	case "ls":
		p, ok := stringField(input, "path")
		if !ok {
			return "List directory"
		}
		rel := MakeRelative(p, worktree)
		if rel == "" {
			return "List directory"
		}
		return fmt.Sprintf("List directory: `%s`", rel)
	case "glob":
		pattern, ok := stringField(input, "pattern")
		if !ok {
			pattern = "*"
		}
		if p, ok := stringField(input, "path"); ok {
			return fmt.Sprintf("Find files: `%s` in `%s`", pattern, MakeRelative(p, worktree))
		}
		return fmt.Sprintf("Find files: `%s`", pattern)
	case "codebase_search_agent":
		if query, ok := stringField(input, "query"); ok {
			return "Search: " + query
		}
		return "Codebase search"
	default:
		return toolName
	}
}

// todoGlyphs maps todo statuses to the marker shown in summaries
var todoGlyphs = map[string]string{
	"completed":   "✅",
	"in_progress": "🔄",
	"pending":     "⏳",
	"todo":        "⏳",
}

func summarizeTodos(input map[string]any) string {
	todos, _ := input["todos"].([]any)

	var items []string
	for _, raw := range todos {
		todo, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		content, ok := stringField(todo, "content")
		if !ok {
			continue
		}
		status, ok := stringField(todo, "status")
		if !ok {
			status = "pending"
		}
		glyph, ok := todoGlyphs[status]
		if !ok {
			glyph = "📝"
		}
		priority, ok := stringField(todo, "priority")
		if !ok {
			priority = "medium"
		}
		items = append(items, fmt.Sprintf("%s %s (%s)", glyph, content, priority))
	}

	if len(items) == 0 {
		return "Managing TODO list"
	}
	return "TODO List:\n" + strings.Join(items, "\n")
}

// stringField returns input[key] when it is present and a JSON string
func stringField(input map[string]any, key string) (string, bool) {
	if input == nil {
		return "", false
	}
	s, ok := input[key].(string)
	return s, ok
}
