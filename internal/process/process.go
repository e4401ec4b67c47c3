// Package process spawns shell commands inside their own process group.
//
// process.go - Shell spawner and child handle
//
// This file contains:
// - Spec describing a command to run through the platform shell
// - Spawner interface and ShellSpawner implementation
// - Child handle exposing piped stdio, Wait and group Kill
//
// Children are started in a fresh process group. Cancelling the context
// passed to Spawn terminates the whole group, so abandoning a launch never
// leaves orphaned subprocesses behind.

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// waitDelay bounds how long Wait blocks on stdio after the group is killed
const waitDelay = 5 * time.Second

// Spec describes a command to run through the platform shell
type Spec struct {
	Command string
	Dir     string
	Env     []string // KEY=VALUE pairs added to the inherited environment
}

// Spawner starts shell commands with piped stdio
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (*Child, error)
}

// ShellCommand returns the shell program and the flag that makes it run a
// single command string
func ShellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}

// ShellSpawner runs commands via ShellCommand in a new process group
type ShellSpawner struct{}

var _ Spawner = ShellSpawner{}

// Spawn starts spec.Command. The returned child is killed, along with every
// process in its group, when ctx is cancelled.
func (ShellSpawner) Spawn(ctx context.Context, spec Spec) (*Child, error) {
	shell, flag := ShellCommand()
	cmd := exec.CommandContext(ctx, shell, flag, spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", shell, err)
	}

	wait := func() (int, error) {
		err := cmd.Wait()
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}

	return NewChild(cmd.Process.Pid, stdin, stdout, stderr, wait, func() error {
		return killProcessGroup(cmd)
	}), nil
}

// Child is a running process with piped stdio.
//
// Stdout and Stderr must be drained before calling Wait; Wait closes the
// underlying pipes once the process exits.
type Child struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	pid  int
	wait func() (int, error)
	kill func() error

	matched   atomic.Bool
	relayDone chan struct{}

	waitOnce sync.Once
	exitCode int
	waitErr  error
	done     chan struct{}
}

// NewChild assembles a Child from its parts. wait must block until the
// process exits and report its exit code; kill must terminate it.
func NewChild(pid int, stdin io.WriteCloser, stdout, stderr io.ReadCloser, wait func() (int, error), kill func() error) *Child {
	return &Child{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		pid:    pid,
		wait:   wait,
		kill:   kill,
		done:   make(chan struct{}),
	}
}

// Pid returns the OS process id of the shell
func (c *Child) Pid() int {
	return c.pid
}

// Kill terminates the child and its process group
func (c *Child) Kill() error {
	if c.kill == nil {
		return nil
	}
	return c.kill()
}

// Done returns a channel that is closed once Wait has returned
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the process exits and returns its exit code. A child
// stopped by TerminateOn reports exit code 0. Wait is safe to call more
// than once.
func (c *Child) Wait() (int, error) {
	c.waitOnce.Do(func() {
		if c.relayDone != nil {
			<-c.relayDone
		}
		c.exitCode, c.waitErr = c.wait()
		if c.matched.Load() {
			c.exitCode, c.waitErr = 0, nil
		}
		close(c.done)
	})
	return c.exitCode, c.waitErr
}

// Terminated reports whether TerminateOn stopped the child
func (c *Child) Terminated() bool {
	return c.matched.Load()
}

// Close closes all stdio streams
func (c *Child) Close() error {
	if c.Stdin != nil {
		_ = c.Stdin.Close()
	}
	if c.Stdout != nil {
		_ = c.Stdout.Close()
	}
	if c.Stderr != nil {
		_ = c.Stderr.Close()
	}
	return nil
}
