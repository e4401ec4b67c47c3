package claude

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestWatchScript(t *testing.T) {
	script := WatchScript(`npx -y pkg "quoted" $HOME`)

	for _, want := range []string{
		"#!/usr/bin/env bash",
		"set -euo pipefail",
		`command="npx -y pkg \"quoted\" \$HOME"`,
		PlanSentinel,
		"2>&1",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("WatchScript() missing %q:\n%s", want, script)
		}
	}
}

func TestWrapCommand(t *testing.T) {
	wrapped := WrapCommand("claude -p")
	if !strings.HasPrefix(wrapped, "bash -c '") {
		t.Errorf("WrapCommand() = %q, want bash -c prefix", wrapped)
	}
}

func TestBashQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a"b`, `a\"b`},
		{`$x`, `\$x`},
		{"`id`", "\\`id\\`"},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := bashQuote(tt.in); got != tt.want {
				t.Errorf("bashQuote(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func runWatchScript(t *testing.T, command string) (string, int) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	cmd := exec.Command("bash", "-c", WatchScript(command))
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return string(out), 0
	case errors.As(err, &exitErr):
		return string(out), exitErr.ExitCode()
	default:
		t.Fatalf("running watch script: %v", err)
		return "", -1
	}
}

func TestWatchScript_PropagatesExitCode(t *testing.T) {
	out, code := runWatchScript(t, `echo one; echo two >&2; exit 3`)
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if out != "one\ntwo\n" {
		t.Errorf("output = %q, want both lines relayed", out)
	}
}

func TestWatchScript_SucceedsOnSentinel(t *testing.T) {
	start := time.Now()
	out, code := runWatchScript(t, `echo planning; echo "`+PlanSentinel+`"; sleep 5; echo after`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "planning\n") || !strings.Contains(out, PlanSentinel) {
		t.Errorf("output = %q, want relayed lines", out)
	}
	if strings.Contains(out, "after") {
		t.Errorf("output = %q, command should have been stopped", out)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("watch script took %v, want it to stop at the sentinel", time.Since(start))
	}
}
