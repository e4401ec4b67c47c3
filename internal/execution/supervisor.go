// Package execution supervises launched executor processes.
//
// supervisor.go - Execution lifecycle
//
// This file contains:
// - Supervisor owning every running child process
// - Start: throttle, record, spawn, capture output, record the exit
// - Normalize: re-derive a conversation from captured stdout
// - Stop and Close for terminating children
//
// Output is appended to the execution record line by line as it arrives,
// so Normalize can be called at any time while a process runs.

package execution

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/audit"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/metrics"
	"github.com/HyphaGroup/claudexec/internal/process"
	"github.com/HyphaGroup/claudexec/internal/ratelimit"
	"github.com/HyphaGroup/claudexec/internal/task"
)

// ErrNotRunning is returned by Stop for executions without a live process
var ErrNotRunning = errors.New("execution is not running")

// maxChunk bounds a single stored output line
const maxChunk = 1024 * 1024

// StartRequest describes one launch to supervise
type StartRequest struct {
	Executor  agent.Executor
	TaskID    string
	ProjectID string // Throttling key
	WorkDir   string
	Variant   agent.Variant
	SessionID string // Resumed session, if any
	Prompt    string // Follow-up prompt, kept for normalization
	Output    io.Writer // Optional copy of stdout as it is captured
}

// run is one live child and its bookkeeping
type run struct {
	id        string
	req       StartRequest
	child     *process.Child
	cancel    context.CancelFunc
	startedAt time.Time
	stopped   atomic.Bool
	sessionID atomic.Bool
	done      chan struct{}
}

// Supervisor launches executors and tracks their processes
type Supervisor struct {
	store   *task.Store
	limiter *ratelimit.Limiter
	audit   *audit.Logger

	mu      sync.RWMutex
	running map[string]*run
	wg      sync.WaitGroup
}

// NewSupervisor creates a supervisor. A nil limiter disables throttling and
// a nil audit logger uses audit.Default.
func NewSupervisor(store *task.Store, limiter *ratelimit.Limiter, auditLogger *audit.Logger) *Supervisor {
	if auditLogger == nil {
		auditLogger = audit.Default()
	}
	return &Supervisor{
		store:   store,
		limiter: limiter,
		audit:   auditLogger,
		running: make(map[string]*run),
	}
}

// Start records a new execution and launches req.Executor for it. A spawn
// failure is recorded on the execution and also returned; the execution is
// still returned so callers can report its ID.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*task.Execution, error) {
	if req.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if req.Variant == "" {
		req.Variant = agent.VariantNew
	}

	if s.limiter != nil && req.ProjectID != "" {
		if err := s.limiter.Check(req.ProjectID); err != nil {
			return nil, err
		}
	}

	exec := &task.Execution{
		TaskID:       req.TaskID,
		ExecutorType: string(req.Executor.Type()),
		Variant:      string(req.Variant),
		WorkDir:      req.WorkDir,
		SessionID:    req.SessionID,
		Prompt:       req.Prompt,
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	// The child outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = logger.WithValue(runCtx, logger.ContextKeyExecutionID, exec.ID)
	runCtx = logger.WithValue(runCtx, logger.ContextKeyTaskID, req.TaskID)
	runCtx = logger.WithValue(runCtx, logger.ContextKeySessionID, req.SessionID)
	log := logger.WithContext(runCtx)

	child, err := req.Executor.Spawn(runCtx, req.TaskID, req.WorkDir)
	if err != nil {
		cancel()
		log.Error("failed to launch executor", "error", err)
		s.recordSpawnFailure(exec, req, err)
		return exec, err
	}

	r := &run{
		id:        exec.ID,
		req:       req,
		child:     child,
		cancel:    cancel,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	if req.SessionID != "" {
		r.sessionID.Store(true)
	}

	s.mu.Lock()
	s.running[exec.ID] = r
	s.mu.Unlock()

	metrics.RecordExecutionStart()
	s.audit.Log(&audit.Event{
		Operation:    audit.OpExecutionStart,
		ExecutionID:  exec.ID,
		TaskID:       req.TaskID,
		ProjectID:    req.ProjectID,
		SessionID:    req.SessionID,
		ExecutorType: exec.ExecutorType,
		Success:      true,
		Details:      map[string]any{"variant": exec.Variant, "pid": child.Pid()},
	})
	log.Info("execution started", "pid", child.Pid(), "variant", exec.Variant)

	s.wg.Add(1)
	go s.supervise(runCtx, r)

	return exec, nil
}

func (s *Supervisor) recordSpawnFailure(exec *task.Execution, req StartRequest, spawnErr error) {
	ctx := context.Background()
	if err := s.store.CompleteExecution(ctx, exec.ID, task.StatusFailed, nil, spawnErr.Error()); err != nil {
		logger.ErrorContext(ctx, "failed to record spawn failure", "execution_id", exec.ID, "error", err)
	}
	exec.Status = task.StatusFailed
	exec.Error = spawnErr.Error()

	details := map[string]any{"fallback_exhausted": agent.IsFallbackExhausted(spawnErr)}
	var se *agent.SpawnError
	if errors.As(spawnErr, &se) {
		details["phase"] = string(se.Phase)
		details["command"] = se.Command
	}
	s.audit.Log(&audit.Event{
		Operation:    audit.OpExecutionFail,
		ExecutionID:  exec.ID,
		TaskID:       req.TaskID,
		ProjectID:    req.ProjectID,
		SessionID:    req.SessionID,
		ExecutorType: exec.ExecutorType,
		Success:      false,
		Error:        spawnErr.Error(),
		Details:      details,
	})
}

// supervise captures output until the child exits, then records the exit
func (s *Supervisor) supervise(ctx context.Context, r *run) {
	defer s.wg.Done()
	defer close(r.done)
	defer r.cancel()

	log := logger.WithContext(ctx)
	storeCtx := context.WithoutCancel(ctx)

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		s.capture(storeCtx, r, task.StreamStdout, r.child.Stdout)
	}()
	go func() {
		defer streams.Done()
		s.capture(storeCtx, r, task.StreamStderr, r.child.Stderr)
	}()
	streams.Wait()

	code, waitErr := r.child.Wait()
	elapsed := time.Since(r.startedAt)

	status := task.StatusCompleted
	errMsg := ""
	switch {
	case r.stopped.Load():
		status = task.StatusKilled
		errMsg = "stopped"
	case waitErr != nil:
		status = task.StatusFailed
		errMsg = waitErr.Error()
	case code != 0:
		status = task.StatusFailed
		errMsg = fmt.Sprintf("exit code %d", code)
	}

	var exitCode *int
	if waitErr == nil {
		exitCode = &code
	}
	if err := s.store.CompleteExecution(storeCtx, r.id, status, exitCode, errMsg); err != nil {
		log.Error("failed to record execution exit", "error", err)
	}

	s.mu.Lock()
	delete(s.running, r.id)
	s.mu.Unlock()

	metrics.RecordExecutionEnd(string(status), elapsed.Seconds())
	log.Info("execution finished", "status", status, "exit_code", code,
		"sentinel", r.child.Terminated(), "duration", elapsed.Round(time.Millisecond))
}

// capture appends src to the execution record line by line. Stdout lines
// are also scanned for the agent session id until one is found.
func (s *Supervisor) capture(ctx context.Context, r *run, stream task.Stream, src io.Reader) {
	if src == nil {
		return
	}
	reader := bufio.NewReaderSize(src, 64*1024)
	for {
		line, err := readChunk(reader)
		if line != "" {
			if appendErr := s.store.AppendOutput(ctx, r.id, stream, line); appendErr != nil {
				logger.ErrorContext(ctx, "failed to store output", "stream", stream, "error", appendErr)
			}
			if stream == task.StreamStdout && r.req.Output != nil {
				_, _ = io.WriteString(r.req.Output, line)
			}
			if stream == task.StreamStdout && !r.sessionID.Load() {
				s.extractSessionID(ctx, r, line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.DebugContext(ctx, "output stream ended", "stream", stream, "error", err)
			}
			return
		}
	}
}

// readChunk returns the next line including its newline, or at most
// maxChunk bytes of an oversized line
func readChunk(reader *bufio.Reader) (string, error) {
	var buf []byte
	for {
		part, err := reader.ReadSlice('\n')
		buf = append(buf, part...)
		if errors.Is(err, bufio.ErrBufferFull) && len(buf) < maxChunk {
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			err = nil
		}
		return string(buf), err
	}
}

func (s *Supervisor) extractSessionID(ctx context.Context, r *run, line string) {
	conv := r.req.Executor.NormalizeLogs(line, r.req.WorkDir)
	if conv.SessionID == "" {
		return
	}
	if err := s.store.SetSessionID(ctx, r.id, conv.SessionID); err != nil {
		logger.ErrorContext(ctx, "failed to store session id", "error", err)
		return
	}
	r.sessionID.Store(true)
	logger.InfoContext(ctx, "captured agent session", "agent_session_id", conv.SessionID)
}

// Normalize re-derives the conversation from the execution's captured
// stdout. It can be called while the process is still running.
func (s *Supervisor) Normalize(ctx context.Context, executionID string) (*agent.NormalizedConversation, error) {
	exec, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	var conv *agent.NormalizedConversation
	if r, ok := s.get(executionID); ok {
		conv = r.req.Executor.NormalizeLogs(exec.Stdout, exec.WorkDir)
	} else {
		conv = claude.Normalize(exec.Stdout, exec.WorkDir, agent.ExecutorType(exec.ExecutorType))
	}
	if exec.Prompt != "" {
		conv.Prompt = exec.Prompt
	}

	counts := make(map[string]int)
	for kind, n := range conv.CountByKind() {
		counts[string(kind)] = n
	}
	metrics.RecordNormalizedEntries(counts)
	return conv, nil
}

// Stop kills the execution's process group. The execution is recorded as
// killed once its process has exited.
func (s *Supervisor) Stop(executionID string) error {
	r, ok := s.get(executionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, executionID)
	}

	r.stopped.Store(true)
	r.cancel()
	if err := r.child.Kill(); err != nil {
		logger.Slog().Warn("kill failed", "execution_id", executionID, "error", err)
	}

	s.audit.Log(&audit.Event{
		Operation:    audit.OpExecutionStop,
		ExecutionID:  executionID,
		TaskID:       r.req.TaskID,
		ProjectID:    r.req.ProjectID,
		ExecutorType: string(r.req.Executor.Type()),
		Success:      true,
	})
	return nil
}

// Wait blocks until the execution's process has exited and its record is
// final, or ctx is done. Executions that are not running return at once.
func (s *Supervisor) Wait(ctx context.Context, executionID string) error {
	r, ok := s.get(executionID)
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the IDs of executions with a live process
func (s *Supervisor) Running() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every running execution and waits for their records to be
// finalized
func (s *Supervisor) Close() {
	for _, id := range s.Running() {
		if err := s.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
			logger.Slog().Warn("failed to stop execution", "execution_id", id, "error", err)
		}
	}
	s.wg.Wait()
}

func (s *Supervisor) get(executionID string) (*run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.running[executionID]
	return r, ok
}
