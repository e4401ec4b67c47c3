package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateAndGetTask(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		task *Task
	}{
		{"with description", &Task{ProjectID: "proj-1", Title: "Fix bug", Description: "Crash on start"}},
		{"without description", &Task{ProjectID: "proj-2", Title: "Write docs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.CreateTask(ctx, tt.task); err != nil {
				t.Fatalf("CreateTask() error = %v", err)
			}
			if tt.task.ID == "" {
				t.Fatal("CreateTask() should set ID")
			}

			got, err := store.GetTask(ctx, tt.task.ID)
			if err != nil {
				t.Fatalf("GetTask() error = %v", err)
			}
			if got.ProjectID != tt.task.ProjectID || got.Title != tt.task.Title || got.Description != tt.task.Description {
				t.Errorf("GetTask() = %+v, want %+v", got, tt.task)
			}
		})
	}
}

func TestStore_GetTaskNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetTask(context.Background(), "task_missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestStore_ExecutionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	exec := &Execution{TaskID: "task_1", ExecutorType: "Claude", Variant: "resume", WorkDir: "/tmp/w", Prompt: "keep going"}
	if err := store.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	if exec.Status != StatusRunning {
		t.Errorf("Status = %q, want running", exec.Status)
	}

	if err := store.AppendOutput(ctx, exec.ID, StreamStdout, "line one\n"); err != nil {
		t.Fatalf("AppendOutput() error = %v", err)
	}
	if err := store.AppendOutput(ctx, exec.ID, StreamStdout, "line two\n"); err != nil {
		t.Fatalf("AppendOutput() error = %v", err)
	}
	if err := store.AppendOutput(ctx, exec.ID, StreamStderr, "warning\n"); err != nil {
		t.Fatalf("AppendOutput() error = %v", err)
	}
	if err := store.SetSessionID(ctx, exec.ID, "sess-123"); err != nil {
		t.Fatalf("SetSessionID() error = %v", err)
	}

	code := 0
	if err := store.CompleteExecution(ctx, exec.ID, StatusCompleted, &code, ""); err != nil {
		t.Fatalf("CompleteExecution() error = %v", err)
	}

	got, err := store.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if got.Stdout != "line one\nline two\n" {
		t.Errorf("Stdout = %q", got.Stdout)
	}
	if got.Stderr != "warning\n" {
		t.Errorf("Stderr = %q", got.Stderr)
	}
	if got.Prompt != "keep going" {
		t.Errorf("Prompt = %q, want keep going", got.Prompt)
	}
	if got.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want sess-123", got.SessionID)
	}
	if got.Status != StatusCompleted || !got.Status.Finished() {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", got.ExitCode)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestStore_UnknownExecution(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetExecution(ctx, "exec_missing"); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("GetExecution() error = %v, want ErrExecutionNotFound", err)
	}
	if err := store.AppendOutput(ctx, "exec_missing", StreamStdout, "x"); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("AppendOutput() error = %v, want ErrExecutionNotFound", err)
	}
	if err := store.CompleteExecution(ctx, "exec_missing", StatusFailed, nil, "boom"); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("CompleteExecution() error = %v, want ErrExecutionNotFound", err)
	}
	if err := store.AppendOutput(ctx, "exec_missing", Stream("bogus"), "x"); err == nil {
		t.Error("AppendOutput() with unknown stream should fail")
	}
}

func TestStore_ListAndPrune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	finished := &Execution{TaskID: "task_a", ExecutorType: "Claude", Variant: "new", WorkDir: "/w"}
	running := &Execution{TaskID: "task_a", ExecutorType: "Claude", Variant: "resume", WorkDir: "/w"}
	other := &Execution{TaskID: "task_b", ExecutorType: "ClaudePlan", Variant: "new", WorkDir: "/w"}
	for _, e := range []*Execution{finished, running, other} {
		if err := store.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution() error = %v", err)
		}
	}
	if err := store.CompleteExecution(ctx, finished.ID, StatusFailed, nil, "spawn failed"); err != nil {
		t.Fatalf("CompleteExecution() error = %v", err)
	}

	byTask, err := store.ListExecutions(ctx, &ListFilter{TaskID: "task_a"})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(byTask) != 2 {
		t.Errorf("ListExecutions(task_a) returned %d, want 2", len(byTask))
	}

	runningOnly, err := store.ListExecutions(ctx, &ListFilter{Status: StatusRunning})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(runningOnly) != 2 {
		t.Errorf("ListExecutions(running) returned %d, want 2", len(runningOnly))
	}

	limited, err := store.ListExecutions(ctx, &ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListExecutions(limit 1) returned %d, want 1", len(limited))
	}

	n, err := store.DeleteFinishedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteFinishedBefore() deleted %d, want 1", n)
	}
	if _, err := store.GetExecution(ctx, finished.ID); !errors.Is(err, ErrExecutionNotFound) {
		t.Error("finished execution should be pruned")
	}

	reset, err := store.MarkRunningAsFailed(ctx, "server restarted")
	if err != nil {
		t.Fatalf("MarkRunningAsFailed() error = %v", err)
	}
	if reset != 2 {
		t.Errorf("MarkRunningAsFailed() = %d, want 2", reset)
	}
	got, _ := store.GetExecution(ctx, running.ID)
	if got == nil || got.Status != StatusFailed || got.Error != "server restarted" {
		t.Errorf("running execution after reset = %+v", got)
	}
}
