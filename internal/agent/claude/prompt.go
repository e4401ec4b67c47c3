package claude

import (
	"fmt"
	"strings"

	"github.com/HyphaGroup/claudexec/internal/task"
)

// TaskPrompt builds the stdin prompt for a new task
func TaskPrompt(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "project_id: %s\n\nTask title: %s", t.ProjectID, t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "\nTask description: %s", t.Description)
	}
	return b.String()
}
