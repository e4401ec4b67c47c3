package mcp

import "github.com/google/jsonschema-go/jsonschema"

// logsNormalizeSchema is written out so the logs field can carry a
// description of the stream-json format
var logsNormalizeSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"logs": {
			Type:        "string",
			Description: "Captured stdout of a claude run: newline-delimited stream-json objects",
		},
		"worktree": {
			Type:        "string",
			Description: "Directory the run worked in; tool paths under it are shown relative",
		},
		"plan": {
			Type:        "boolean",
			Description: "Label the conversation as a plan-mode run",
		},
	},
	Required: []string{"logs"},
}

// registerAllTools registers all MCP tools with the registry
func (s *Server) registerAllTools(r *Registry) {
	s.registerTaskTools(r)
	s.registerExecutionTools(r)
	s.registerLogTools(r)
}

func (s *Server) registerTaskTools(r *Registry) {
	Register(r, ToolDef{
		Name: "task_create",
		Description: `Create a task that claude can be launched for.

Requires project_id and title; description is optional. Returns the task_id.
The title and description become the prompt of every new-task launch.`,
	}, s.handleTaskCreate)

	Register(r, ToolDef{
		Name: "task_launch",
		Description: `Launch claude for a task in a worktree.

Requires task_id and worktree (an existing absolute directory). Set plan=true to
start in plan mode; the run exits cleanly once claude asks to leave plan mode.
Returns the execution_id. Poll execution_get for progress.`,
	}, s.handleTaskLaunch)

	Register(r, ToolDef{
		Name: "session_resume",
		Description: `Send a follow-up prompt to an earlier claude session.

Requires session_id (from execution_get), prompt and worktree. task_id is optional
and links the new execution to a task. Returns the execution_id.`,
	}, s.handleSessionResume)
}

func (s *Server) registerExecutionTools(r *Registry) {
	Register(r, ToolDef{
		Name: "execution_get",
		Description: `Get an execution: status, exit code, session id and the normalized conversation.

Requires execution_id. The conversation is rebuilt from the output captured so far,
so it can be polled while the execution is running. Set include_output=true for raw
stdout/stderr.`,
	}, s.handleExecutionGet)

	Register(r, ToolDef{
		Name: "execution_stop",
		Description: `Stop a running execution by killing its process group.

Requires execution_id. The execution is recorded as killed.`,
	}, s.handleExecutionStop)

	Register(r, ToolDef{
		Name: "command_resolve",
		Description: `Show the command line claude would be launched with.

Set plan=true for the plan-mode command. is_fallback reports whether the npx
fallback was chosen because no local install was found.`,
	}, s.handleCommandResolve)
}

func (s *Server) registerLogTools(r *Registry) {
	Register(r, ToolDef{
		Name: "logs_normalize",
		Description: `Normalize captured claude stream-json output into conversation entries.

Each entry is a user, assistant, system or tool-use message. Tool uses carry an
action such as file_read, command_run or search. Lines that are not JSON are kept
as raw output.`,
		InputSchema: logsNormalizeSchema,
	}, s.handleLogsNormalize)
}
