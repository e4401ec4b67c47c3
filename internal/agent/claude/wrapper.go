package claude

import (
	"fmt"
	"strings"
)

// PlanSentinel is printed by the CLI when plan mode stops to wait for plan
// approval. The process never exits on its own after this line.
const PlanSentinel = "Claude requested permissions to use exit_plan_mode, but you haven't granted it yet"

// PlanWatch selects how plan-mode runs are stopped at the sentinel
type PlanWatch string

const (
	// PlanWatchInProcess scans stdout in-process and kills the process group
	PlanWatchInProcess PlanWatch = "inprocess"
	// PlanWatchScript wraps the command in a generated bash monitor script
	PlanWatchScript PlanWatch = "script"
)

const watchScriptTemplate = `#!/usr/bin/env bash
set -euo pipefail

word="%s"
command="%s"

exec 3< <(bash -c "$command" <&0 2>&1)
child=$!

while IFS= read -r line <&3 || [[ -n $line ]]; do
    printf '%%s\n' "$line"
    if [[ $line == *"$word"* ]]; then
        kill -- "$child" 2>/dev/null || true
        exit 0
    fi
done

exit_code=0
wait "$child" || exit_code=$?
exit "$exit_code"
`

// WatchScript returns a bash script that runs command with stderr merged
// into stdout, relays every line, and exits 0 as soon as a line contains
// PlanSentinel. Otherwise it exits with the command's own status.
func WatchScript(command string) string {
	return fmt.Sprintf(watchScriptTemplate, bashQuote(PlanSentinel), bashQuote(command))
}

// WrapCommand turns command into a shell command that runs WatchScript
func WrapCommand(command string) string {
	return "bash -c " + shellEscape(WatchScript(command))
}

// bashQuote escapes s for use inside a double-quoted bash string
func bashQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")
	return r.Replace(s)
}
