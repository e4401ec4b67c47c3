// Package cleanup prunes old execution records on a cron schedule.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/metrics"
)

// cronParser is configured for standard 5-field cron (minute hour day month weekday)
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Pruner deletes finished executions that completed before cutoff
type Pruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Resetter drops accumulated per-key state
type Resetter interface {
	Reset()
}

// Config holds cleanup configuration.
type Config struct {
	Schedule  string        // 5-field cron expression
	Retention time.Duration // How long to keep finished executions
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Schedule:  "0 * * * *",
		Retention: 7 * 24 * time.Hour,
	}
}

// Cleaner performs scheduled retention pruning.
type Cleaner struct {
	pruner    Pruner
	limiter   Resetter
	schedule  string
	retention time.Duration
	cron      *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
	now    func() time.Time
}

// New creates a Cleaner. limiter may be nil. An invalid cron expression or
// a non-positive retention is an error.
func New(cfg Config, pruner Pruner, limiter Resetter) (*Cleaner, error) {
	if _, err := cronParser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("cleanup retention must be positive, got %v", cfg.Retention)
	}
	return &Cleaner{
		pruner:    pruner,
		limiter:   limiter,
		schedule:  cfg.Schedule,
		retention: cfg.Retention,
		now:       time.Now,
	}, nil
}

// Start registers the cleanup job and starts the scheduler.
func (c *Cleaner) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	scheduler := cron.New(cron.WithParser(cronParser))
	if _, err := scheduler.AddFunc(c.schedule, func() { c.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	scheduler.Start()

	c.cron = scheduler
	c.cancel = cancel
	logger.Slog().Info("cleanup started", "schedule", c.schedule, "retention", c.retention)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	scheduler, cancel := c.cron, c.cancel
	c.cron, c.cancel = nil, nil
	c.mu.Unlock()

	if scheduler == nil {
		return
	}
	cancel()
	<-scheduler.Stop().Done()
	logger.Slog().Info("cleanup stopped")
}

// RunOnce prunes finished executions older than the retention window and
// resets the launch limiter. It returns the number of executions deleted.
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	cutoff := c.now().Add(-c.retention)

	deleted, err := c.pruner.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		logger.ErrorContext(ctx, "cleanup failed", "error", err)
		return 0
	}
	metrics.RecordPruned(deleted)

	if c.limiter != nil {
		c.limiter.Reset()
	}

	if deleted > 0 {
		logger.InfoContext(ctx, "pruned old executions", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}
