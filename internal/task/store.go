// Package task stores tasks and the executions launched for them.
//
// store.go - SQLite persistence
//
// This file contains:
// - Store backed by modernc.org/sqlite
// - Task CRUD used by the new-task executor for prompt construction
// - Execution records with incrementally appended stdout/stderr

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrExecutionNotFound = errors.New("execution not found")
)

// Store handles task and execution persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new store with SQLite backend in dataDir
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "claudexec.db")
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Output appends arrive from two goroutines per execution; a single
	// connection serializes them without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		executor_type TEXT NOT NULL,
		variant TEXT NOT NULL,
		work_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		session_id TEXT,
		prompt TEXT,
		exit_code INTEGER,
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		error TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_executions_task ON executions(task_id);
	CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTask inserts a task, assigning an ID when none is set
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = "task_" + uuid.New().String()[:8]
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, nullString(t.Description), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	var description sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, created_at
		FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	t.Description = description.String
	return &t, nil
}

// CreateExecution inserts a running execution record
func (s *Store) CreateExecution(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = "exec_" + uuid.New().String()[:8]
	}
	if e.Status == "" {
		e.Status = StatusRunning
	}
	e.StartedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, task_id, executor_type, variant, work_dir, status, session_id, prompt, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.ExecutorType, e.Variant, e.WorkDir, e.Status,
		nullString(e.SessionID), nullString(e.Prompt), e.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// AppendOutput appends captured output to an execution's stdout or stderr
func (s *Store) AppendOutput(ctx context.Context, id string, stream Stream, chunk string) error {
	var query string
	switch stream {
	case StreamStdout:
		query = `UPDATE executions SET stdout = stdout || ? WHERE id = ?`
	case StreamStderr:
		query = `UPDATE executions SET stderr = stderr || ? WHERE id = ?`
	default:
		return fmt.Errorf("unknown stream: %s", stream)
	}

	result, err := s.db.ExecContext(ctx, query, chunk, id)
	if err != nil {
		return fmt.Errorf("failed to append %s: %w", stream, err)
	}
	return requireRow(result, ErrExecutionNotFound)
}

// SetSessionID records the agent session ID for an execution
func (s *Store) SetSessionID(ctx context.Context, id, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE executions SET session_id = ? WHERE id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("failed to set session id: %w", err)
	}
	return requireRow(result, ErrExecutionNotFound)
}

// CompleteExecution marks an execution finished. exitCode is nil when the
// process never started.
func (s *Store) CompleteExecution(ctx context.Context, id string, status ExecutionStatus, exitCode *int, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, exit_code = ?, error = ?, completed_at = ?
		WHERE id = ?`,
		status, exitCode, nullString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	return requireRow(result, ErrExecutionNotFound)
}

const executionColumns = `id, task_id, executor_type, variant, work_dir, status, session_id,
	prompt, exit_code, stdout, stderr, error, started_at, completed_at`

// GetExecution retrieves an execution by ID, including captured output
func (s *Store) GetExecution(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns executions matching the filter, newest first
func (s *Store) ListExecutions(ctx context.Context, filter *ListFilter) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE 1=1`
	var args []any

	if filter != nil {
		if filter.TaskID != "" {
			query += " AND task_id = ?"
			args = append(args, filter.TaskID)
		}
		if filter.Status != "" {
			query += " AND status = ?"
			args = append(args, filter.Status)
		}
	}
	query += " ORDER BY started_at DESC"
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// DeleteFinishedBefore removes finished executions that completed before
// cutoff and returns how many were deleted
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM executions
		WHERE status != ? AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusRunning, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete executions: %w", err)
	}
	return result.RowsAffected()
}

// MarkRunningAsFailed fails executions left running by a previous process
func (s *Store) MarkRunningAsFailed(ctx context.Context, reason string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, error = ?, completed_at = ?
		WHERE status = ?`,
		StatusFailed, reason, time.Now().UTC(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset running executions: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*Execution, error) {
	var e Execution
	var sessionID, prompt, errMsg sql.NullString
	var exitCode sql.NullInt64
	var completedAt sql.NullTime

	if err := row.Scan(
		&e.ID, &e.TaskID, &e.ExecutorType, &e.Variant, &e.WorkDir, &e.Status, &sessionID,
		&prompt, &exitCode, &e.Stdout, &e.Stderr, &errMsg, &e.StartedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	e.SessionID = sessionID.String
	e.Prompt = prompt.String
	e.Error = errMsg.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		e.ExitCode = &code
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
